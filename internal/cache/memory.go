package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const memoryCleanupInterval = time.Minute

type Memory[T any] struct {
	items *gocache.Cache
}

func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{items: gocache.New(gocache.NoExpiration, memoryCleanupInterval)}
}

func (m *Memory[T]) Get(_ context.Context, key string) (T, bool) {
	raw, found := m.items.Get(key)
	if !found {
		var zero T
		return zero, false
	}
	value, ok := raw.(T)
	return value, ok
}

func (m *Memory[T]) Set(_ context.Context, key string, value T, ttl time.Duration) {
	// go-cache treats 0 as "use the default", so map every non-positive ttl
	// to NoExpiration explicitly.
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.items.Set(key, value, ttl)
}

func (m *Memory[T]) Delete(_ context.Context, key string) {
	m.items.Delete(key)
}
