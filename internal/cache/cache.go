// Package cache wraps an expiring LRU with a context-aware API.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultSize bounds caches created without an explicit size.
const DefaultSize = 1024

// Cache is a size-bounded cache whose entries expire after a fixed TTL.
type Cache[K comparable, V any] struct {
	lru *expirable.LRU[K, V]
	ttl time.Duration
}

// New creates a cache with DefaultSize entries.
func New[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return NewSized[K, V](DefaultSize, ttl)
}

// NewSized creates a cache holding at most size entries.
func NewSized[K comparable, V any](size int, ttl time.Duration) *Cache[K, V] {
	if size <= 0 {
		size = DefaultSize
	}
	return &Cache[K, V]{
		lru: expirable.NewLRU[K, V](size, nil, ttl),
		ttl: ttl,
	}
}

// Get returns the cached value if present and not expired.
func (c *Cache[K, V]) Get(_ context.Context, key K) (V, bool) {
	return c.lru.Get(key)
}

// Set stores value under key for the cache TTL.
func (c *Cache[K, V]) Set(_ context.Context, key K, value V) {
	c.lru.Add(key, value)
}

// GetOrLoad returns the cached value or calls load and caches its result.
func (c *Cache[K, V]) GetOrLoad(ctx context.Context, key K, load func(context.Context) (V, error)) (V, error) {
	if v, ok := c.lru.Get(key); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	c.lru.Add(key, v)
	return v, nil
}

// Delete removes key.
func (c *Cache[K, V]) Delete(_ context.Context, key K) {
	c.lru.Remove(key)
}

// Purge drops every entry.
func (c *Cache[K, V]) Purge() {
	c.lru.Purge()
}

// Len returns the number of live entries.
func (c *Cache[K, V]) Len() int {
	return c.lru.Len()
}

// TTL returns the entry lifetime.
func (c *Cache[K, V]) TTL() time.Duration {
	return c.ttl
}
