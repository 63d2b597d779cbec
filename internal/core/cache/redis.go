package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

type Cache struct {
	RDB    *redis.Client
	prefix string
	sf     singleflight.Group
}

func New(addr, pass string, db int) *Cache {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}))
}

func NewWithClient(rdb *redis.Client) *Cache {
	return &Cache{RDB: rdb, prefix: "easyrent:"}
}

func (c *Cache) key(k string) string { return c.prefix + k }

func (c *Cache) Ping(ctx context.Context) error { return c.RDB.Ping(ctx).Err() }

func (c *Cache) Close() error { return c.RDB.Close() }

func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	k := c.key(key)
	// 先读缓存
	if b, err := c.RDB.Get(ctx, k).Bytes(); err == nil {
		return b, nil
	}
	// single flight 合并回源
	v, err, _ := c.sf.Do(k, func() (any, error) {
		b, e := load(ctx)
		if e != nil {
			return nil, e
		}
		_ = c.RDB.Set(ctx, k, b, ttl).Err()
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.RDB.Del(ctx, full...).Err()
}

// Generation reads a version counter; a missing counter is generation 0.
// Callers fold it into their cache keys so that Bump retires every entry
// written under an older generation, including ones a slow loader stores
// after the bump.
func (c *Cache) Generation(ctx context.Context, key string) (int64, error) {
	n, err := c.RDB.Get(ctx, c.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (c *Cache) Bump(ctx context.Context, key string) error {
	return c.RDB.Incr(ctx, c.key(key)).Err()
}

// IncrWindow counts a hit in a fixed window and returns the running count
// together with the time left before the window resets.
func (c *Cache) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	k := c.key(key)
	n, err := c.RDB.Incr(ctx, k).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if n == 1 {
		if err := c.RDB.Expire(ctx, k, window).Err(); err != nil {
			return n, window, fmt.Errorf("expire %s: %w", key, err)
		}
		return n, window, nil
	}
	ttl, err := c.RDB.TTL(ctx, k).Result()
	if err != nil {
		return n, window, nil
	}
	// 丢失过期时间的键补一次
	if ttl < 0 {
		_ = c.RDB.Expire(ctx, k, window).Err()
		ttl = window
	}
	return n, ttl, nil
}
