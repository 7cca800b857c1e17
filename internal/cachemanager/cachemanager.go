// Package cachemanager provides a typed in-memory cache.
package cachemanager

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	// DefaultExpiration uses the cache's configured expiration.
	DefaultExpiration = gocache.DefaultExpiration
	// DefaultCleanupInterval is how often expired items are purged.
	DefaultCleanupInterval = 10 * time.Minute
)

// CacheManager is a typed key/value cache.
type CacheManager[K comparable, V any] interface {
	Name() string
	Get(ctx context.Context, key K) (V, bool)
	GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K) error
	Flush(ctx context.Context) error
}

// InMemoryCacheManager implements CacheManager on top of go-cache.
type InMemoryCacheManager[K comparable, V any] struct {
	name  string
	cache *gocache.Cache
}

var _ CacheManager[string, string] = (*InMemoryCacheManager[string, string])(nil)

// NewInMemoryCacheManager creates a cache whose items expire after
// defaultExpiration unless a ttl is given on Set.
func NewInMemoryCacheManager[K comparable, V any](name string, defaultExpiration, cleanupInterval time.Duration) *InMemoryCacheManager[K, V] {
	return &InMemoryCacheManager[K, V]{
		name:  name,
		cache: gocache.New(defaultExpiration, cleanupInterval),
	}
}

// Name returns the cache name.
func (m *InMemoryCacheManager[K, V]) Name() string {
	return m.name
}

func (m *InMemoryCacheManager[K, V]) cacheKey(key K) string {
	return fmt.Sprint(key)
}

// Get returns the value for key. Values of an unexpected type count as a miss.
func (m *InMemoryCacheManager[K, V]) Get(_ context.Context, key K) (V, bool) {
	var zero V
	raw, found := m.cache.Get(m.cacheKey(key))
	if !found {
		return zero, false
	}
	value, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return value, true
}

// GetWithRefresh returns the value for key and extends its lifetime by ttl.
func (m *InMemoryCacheManager[K, V]) GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool) {
	value, ok := m.Get(ctx, key)
	if ok {
		m.Set(ctx, key, value, ttl)
	}
	return value, ok
}

// Set stores value under key for ttl.
func (m *InMemoryCacheManager[K, V]) Set(_ context.Context, key K, value V, ttl time.Duration) {
	m.cache.Set(m.cacheKey(key), value, ttl)
}

// Delete removes keys. Deleting missing keys is not an error.
func (m *InMemoryCacheManager[K, V]) Delete(_ context.Context, keys ...K) error {
	for _, key := range keys {
		m.cache.Delete(m.cacheKey(key))
	}
	return nil
}

// Flush removes all items.
func (m *InMemoryCacheManager[K, V]) Flush(_ context.Context) error {
	m.cache.Flush()
	return nil
}
