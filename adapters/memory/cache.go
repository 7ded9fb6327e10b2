// Package memory provides in-process implementations of the cache and
// rate limiting ports, used when Redis is not configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/luminote/luminote/domain/ratelimit"
	"github.com/luminote/luminote/ports"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Cache is an in-memory TTL cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	clock   ports.Clock
}

// NewCache creates an in-memory cache.
func NewCache(clock ports.Clock) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		clock:   clock,
	}
}

// Get retrieves a cached value. Expired entries count as misses and
// are dropped lazily.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.clock.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores a value with a TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expiresAt: c.clock.Now().Add(ttl)}
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// RateLimiter is an in-memory fixed-window rate limiter.
type RateLimiter struct {
	mu    sync.Mutex
	state map[string]ratelimit.WindowState
	clock ports.Clock
}

// NewRateLimiter creates an in-memory rate limiter.
func NewRateLimiter(clock ports.Clock) *RateLimiter {
	return &RateLimiter{
		state: make(map[string]ratelimit.WindowState),
		clock: clock,
	}
}

// Allow reports whether the request under key fits the window.
func (l *RateLimiter) Allow(ctx context.Context, key string, window time.Duration, maxRequests int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg := ratelimit.Config{MaxRequests: maxRequests, Window: window}
	result, next := ratelimit.Check(l.state[key], cfg, l.clock.Now())
	l.state[key] = next
	return result.Allowed
}

// Ensure interface compliance.
var (
	_ ports.Cache       = (*Cache)(nil)
	_ ports.RateLimiter = (*RateLimiter)(nil)
)
