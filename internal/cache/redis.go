package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisPingTimeout = 5 * time.Second

func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

// Redis stores JSON encoded values under prefix+key. Redis errors degrade to
// misses and are logged.
type Redis[T any] struct {
	client redis.UniversalClient
	prefix string
	logger *zap.Logger
}

func NewRedis[T any](client redis.UniversalClient, prefix string, logger *zap.Logger) *Redis[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis[T]{client: client, prefix: prefix, logger: logger}
}

func (r *Redis[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false
	}
	if err != nil {
		r.logger.Warn("redis cache get failed", zap.String("key", r.prefix+key), zap.Error(err))
		return zero, false
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		r.logger.Warn("redis cache entry undecodable", zap.String("key", r.prefix+key), zap.Error(err))
		return zero, false
	}
	return value, true
}

func (r *Redis[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		r.logger.Warn("redis cache encode failed", zap.String("key", r.prefix+key), zap.Error(err))
		return
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.prefix+key, raw, ttl).Err(); err != nil {
		r.logger.Warn("redis cache set failed", zap.String("key", r.prefix+key), zap.Error(err))
	}
}

func (r *Redis[T]) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		r.logger.Warn("redis cache delete failed", zap.String("key", r.prefix+key), zap.Error(err))
	}
}
