// Package cache provides small typed caches injected into services. Values
// are stored as immutable snapshots; concurrent writers are last-writer-wins.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	ProviderMemory = "memory"
	ProviderRedis  = "redis"
)

// Cache is a typed key/value cache. A ttl <= 0 means the entry never expires.
type Cache[T any] interface {
	Get(ctx context.Context, key string) (T, bool)
	Set(ctx context.Context, key string, value T, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// Loader fetches a value on a miss. ok=false means the value does not exist
// and nothing is cached.
type Loader[T any] func(ctx context.Context) (value T, ok bool, err error)

// Wrap returns the cached value for key or calls load and caches what it
// returns.
func Wrap[T any](ctx context.Context, c Cache[T], key string, ttl time.Duration, load Loader[T]) (T, bool, error) {
	if value, ok := c.Get(ctx, key); ok {
		return value, true, nil
	}
	value, ok, err := load(ctx)
	if err != nil || !ok {
		var zero T
		return zero, false, err
	}
	c.Set(ctx, key, value, ttl)
	return value, true, nil
}

// New picks a provider by name. Redis needs a client; without one, or for an
// unknown provider, it falls back to memory.
func New[T any](provider string, client redis.UniversalClient, prefix string, logger *zap.Logger) Cache[T] {
	switch provider {
	case ProviderRedis:
		if client != nil {
			return NewRedis[T](client, prefix, logger)
		}
		logger.Warn("redis cache requested without a client, using memory", zap.String("prefix", prefix))
	case ProviderMemory, "":
	default:
		logger.Warn("unknown cache provider, using memory", zap.String("provider", provider))
	}
	return NewMemory[T]()
}
