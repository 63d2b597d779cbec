// Package app wires configuration into concrete stores and services for the
// binaries under cmd/.
package app

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"easyrent/internal/core/config"
	"easyrent/internal/core/database"
	"easyrent/internal/domain"
	"easyrent/internal/repo"
)

// Stores holds the repositories for the configured backend.
type Stores struct {
	Users    domain.UserRepository
	Listings domain.ListingRepository

	gdb   *gorm.DB
	mongo *mongo.Client
	mdb   *mongo.Database
}

// OpenStores connects to the backend named by cfg.DB.Driver.
func OpenStores(ctx context.Context, cfg *config.Config, l *zap.Logger) (*Stores, error) {
	if cfg.DB.Driver == "mongo" {
		client, db, err := database.NewMongo(ctx, database.MongoOpts{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			Timeout:  time.Duration(cfg.Mongo.TimeoutSec) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		l.Info("database connected", zap.String("driver", "mongo"), zap.String("database", cfg.Mongo.Database))
		return &Stores{
			Users:    repo.NewUserMongoRepo(db),
			Listings: repo.NewListingMongoRepo(db),
			mongo:    client,
			mdb:      db,
		}, nil
	}

	gdb, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		Logger:             l,
	})
	if err != nil {
		return nil, err
	}
	l.Info("database connected", zap.String("driver", cfg.DB.Driver))
	return &Stores{
		Users:    repo.NewUserRepo(gdb),
		Listings: repo.NewListingRepo(gdb),
		gdb:      gdb,
	}, nil
}

// Migrate creates tables (SQL) or indexes (mongo).
func (s *Stores) Migrate(ctx context.Context) error {
	if s.gdb != nil {
		if err := repo.AutoMigrate(s.gdb.WithContext(ctx)); err != nil {
			return fmt.Errorf("automigrate: %w", err)
		}
		return nil
	}
	if err := repo.NewUserMongoRepo(s.mdb).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("user indexes: %w", err)
	}
	if err := repo.NewListingMongoRepo(s.mdb).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("listing indexes: %w", err)
	}
	return nil
}

func (s *Stores) Ping(ctx context.Context) error {
	if s.gdb != nil {
		sqlDB, err := s.gdb.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
	return s.mongo.Ping(ctx, nil)
}

func (s *Stores) Close(ctx context.Context) error {
	if s.gdb != nil {
		sqlDB, err := s.gdb.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return s.mongo.Disconnect(ctx)
}
