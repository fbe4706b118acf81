package maps

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache interface for caching maps responses. Get returns nil, nil on a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RateLimiter interface for rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
	Wait(ctx context.Context, key string) error
}

// MemoryCache is a size-bounded in-process cache. Entries expire after the
// TTL given at construction; the per-call ttl is ignored.
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryCache creates a cache holding at most size entries for ttl.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 10000
	}
	return &MemoryCache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Get retrieves a cached value.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, nil
	}
	return v, nil
}

// Set stores a value.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.lru.Add(key, value)
	return nil
}

// Len returns the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// NoopCache never stores anything.
type NoopCache struct{}

// Get always misses.
func (NoopCache) Get(context.Context, string) ([]byte, error) { return nil, nil }

// Set discards the value.
func (NoopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

// NoopRateLimiter is a rate limiter that allows everything.
// Use for testing or when rate limiting is disabled.
type NoopRateLimiter struct{}

// Allow always returns true.
func (NoopRateLimiter) Allow(context.Context, string) bool { return true }

// Wait always returns immediately.
func (NoopRateLimiter) Wait(context.Context, string) error { return nil }
