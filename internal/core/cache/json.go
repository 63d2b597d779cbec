package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Loader is satisfied by *Cache and by test doubles.
type Loader interface {
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error)
}

// GetOrLoadJSON is GetOrLoad for JSON-encoded values. A loader returning
// (nil, nil) is cached as null and read back as (nil, nil).
func GetOrLoadJSON[T any](
	c Loader,
	ctx context.Context,
	key string,
	ttl time.Duration,
	load func(ctx context.Context) (*T, error),
) (*T, error) {
	b, err := c.GetOrLoad(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, e := load(ctx)
		if e != nil {
			return nil, e
		}
		return json.Marshal(v)
	})
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return nil, nil
	}
	var out T
	if e := json.Unmarshal(b, &out); e != nil {
		return nil, e
	}
	return &out, nil
}
