package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoOpts struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// NewMongo connects and pings before returning. Callers own client.Disconnect.
func NewMongo(ctx context.Context, o MongoOpts) (*mongo.Client, *mongo.Database, error) {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	opts := options.Client().
		ApplyURI(o.URI).
		SetTimeout(o.Timeout).
		SetBSONOptions(&options.BSONOptions{UseLocalTimeZone: false})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	pctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()
	if err := client.Ping(pctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, client.Database(o.Database), nil
}
