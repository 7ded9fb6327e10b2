// Package redis provides Redis-backed cache and rate limiting.
//
// Every operation fails open: when Redis is unreachable, Get misses,
// Set and Delete do nothing, and Allow admits the request. The service
// keeps working without its cache, just slower and unthrottled.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/luminote/luminote/ports"
)

// Cache implements ports.Cache and ports.RateLimiter on Redis.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
}

// New creates a Redis cache. The connection is lazy; a Redis that is
// down at startup or that dies later only costs cache hits.
func New(addr, password string, db int, logger zerolog.Logger) *Cache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Cache{client: client, logger: logger}
}

// NewWithClient wraps an existing client (testing).
func NewWithClient(client *redis.Client, logger zerolog.Logger) *Cache {
	return &Cache{client: client, logger: logger}
}

// Get retrieves a cached value. A miss and an unreachable Redis look
// the same to the caller.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache get failed, treating as miss")
		return nil, false
	}
	return val, true
}

// Set stores a value with a TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache set failed, skipping")
	}
}

// Delete removes a key.
func (c *Cache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache delete failed, skipping")
	}
}

// Allow reports whether the request under key fits the fixed window.
// The counter and its expiry are set atomically so a crash between the
// two cannot leave an immortal counter.
func (c *Cache) Allow(ctx context.Context, key string, window time.Duration, maxRequests int) bool {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("rate limit check failed, allowing")
		return true
	}
	return incr.Val() <= int64(maxRequests)
}

// Close releases the client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ensure interface compliance.
var (
	_ ports.Cache       = (*Cache)(nil)
	_ ports.RateLimiter = (*Cache)(nil)
)
