package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"easyrent/internal/core/auth"
	"easyrent/internal/core/cache"
	"easyrent/internal/core/config"
	"easyrent/internal/media"
	"easyrent/internal/notify"
	"easyrent/internal/service"
	"easyrent/internal/transport/http/handler"
	mdw "easyrent/internal/transport/http/middleware"
	"easyrent/internal/transport/http/router"
)

// App is the assembled HTTP application.
type App struct {
	Engine   *gin.Engine
	Stores   *Stores
	Notifier *notify.Notifier
	Cache    *cache.Cache
}

func NewJWTer(cfg *config.Config) *auth.JWTer {
	return &auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
	}
}

func newDispatcher(cfg *config.Config, l *zap.Logger) notify.Dispatcher {
	if cfg.MailEnabled() {
		if cfg.App.BaseURL == "" {
			l.Warn("app.baseurl not set, reset links are built from the request Host header")
		}
		return notify.NewSMTPDispatcher(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.Username, cfg.Mail.Password, cfg.Mail.From)
	}
	l.Warn("mail.host not set, emails go to the log")
	return notify.NewLogDispatcher(l)
}

func newStorage(ctx context.Context, cfg *config.Config) (media.Storage, string, error) {
	switch cfg.Media.Backend {
	case "s3":
		s, err := media.NewS3Storage(ctx, cfg.Media.S3Bucket, cfg.Media.S3Region, cfg.Media.S3Endpoint)
		return s, "", err
	default:
		s, err := media.NewLocalStorage(cfg.Media.LocalDir, cfg.Media.PublicURL)
		if err != nil {
			return nil, "", err
		}
		return s, s.Dir(), nil
	}
}

// New opens every dependency named in cfg and builds the engine.
func New(ctx context.Context, cfg *config.Config, l *zap.Logger) (*App, error) {
	stores, err := OpenStores(ctx, cfg, l)
	if err != nil {
		return nil, err
	}
	if cfg.DB.AutoMigrate {
		if err := stores.Migrate(ctx); err != nil {
			_ = stores.Close(ctx)
			return nil, err
		}
		l.Info("automigrate done")
	}

	a := &App{Stores: stores}
	var (
		counter   mdw.WindowCounter = mdw.NewMemoryWindow()
		listCache service.Cache
	)
	if cfg.Redis.Addr != "" {
		c := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := c.Ping(ctx); err != nil {
			_ = stores.Close(ctx)
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		a.Cache = c
		counter, listCache = c, c
		l.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	}

	store, uploadsDir, err := newStorage(ctx, cfg)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("media storage: %w", err)
	}
	pipeline := media.NewPipeline(store, media.Options{
		MaxSecondary: cfg.Media.MaxSecondary,
		MaxPartBytes: int64(cfg.Media.MaxPartMB) << 20,
		MaxDimension: cfg.Media.MaxDimension,
	}, l)

	a.Notifier = notify.NewNotifier(newDispatcher(cfg, l), cfg.Mail.From, l)
	jw := NewJWTer(cfg)

	userSvc := service.NewUserService(stores.Users, jw, a.Notifier, service.UserOptions{
		ResetTTL: time.Duration(cfg.Security.ResetTokenTTLMin) * time.Minute,
		Logger:   l,
	})
	listingSvc := service.NewListingService(stores.Listings, stores.Users, pipeline, service.ListingOptions{
		Cache:    listCache,
		CacheTTL: time.Duration(cfg.Redis.ListingTTLSec) * time.Second,
		Logger:   l,
	})

	authn := mdw.Authenticate(service.NewGuard(stores.Users, jw))
	limiter := mdw.LoginLimiter(counter, int64(cfg.Security.LoginLimit),
		time.Duration(cfg.Security.LoginWindowMin)*time.Minute, l)

	a.Engine = router.NewAPIEngine(router.Deps{
		Logger: l,
		Limits: router.Limits{
			RPS:           cfg.HTTP.RateLimitRPS,
			Burst:         cfg.HTTP.RateLimitBurst,
			MaxConcurrent: cfg.HTTP.MaxConcurrent,
			MaxBodyBytes:  int64(cfg.HTTP.MaxBodyMB) << 20,
			Timeout:       time.Duration(cfg.HTTP.RequestTimeoutSec) * time.Second,
		},
		Health:     a.health,
		UploadsDir: uploadsDir,
	},
		handler.NewUserHandler(userSvc, authn, limiter, cfg.App.BaseURL),
		handler.NewListingHandler(listingSvc, authn),
	)
	return a, nil
}

func (a *App) health(ctx context.Context) error {
	err := a.Stores.Ping(ctx)
	if a.Cache != nil {
		err = errors.Join(err, a.Cache.Ping(ctx))
	}
	return err
}

// Close waits for queued mail, then releases connections.
func (a *App) Close(ctx context.Context) {
	if a.Notifier != nil {
		a.Notifier.Wait()
	}
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	_ = a.Stores.Close(ctx)
}
