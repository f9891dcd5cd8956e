package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"townhall-insights-go/internal/config"
	"townhall-insights-go/internal/logger"
)

// Cache is a read-through byte cache for aggregation results. Misses and
// backend failures look identical to callers: recompute.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// New returns a Redis-backed cache, or a no-op when no address is
// configured.
func New(cfg *config.Config) Cache {
	if cfg.RedisAddr == "" {
		return Noop{}
	}
	log := logger.New().WithComponent("cache")
	log.WithField("addr", cfg.RedisAddr).Info("redis cache enabled")
	return &redisCache{
		client: redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}),
		ttl:    cfg.CacheTTL,
	}
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	// Best effort; a failed write just means a recompute later.
	_ = c.client.Set(ctx, key, value, ttl).Err()
}

// Noop satisfies Cache with no storage at all.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (Noop) Set(context.Context, string, []byte, time.Duration) {}
