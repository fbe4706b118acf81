package maps

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisCache implements the Cache interface using Redis.
type RedisCache struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisCache creates a new Redis cache.
func NewRedisCache(client redis.UniversalClient, keyPrefix string) *RedisCache {
	if keyPrefix == "" {
		keyPrefix = "carefinder:maps:"
	}
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get retrieves a cached value.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}
	return val, nil
}

// Set stores a value in cache with TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	KeyPrefix string
	Limit     int           // requests per window
	Window    time.Duration // window size
}

// DefaultRateLimiterConfig returns default rate limiter config.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		KeyPrefix: "carefinder:ratelimit:",
		Limit:     600,
		Window:    time.Minute,
	}
}

// slidingWindow admits a request when fewer than limit entries fall in the
// window. It returns 0 when admitted, otherwise the oldest entry's
// timestamp in microseconds, or -1 when unknown.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local window_ms = tonumber(ARGV[4])
local member = ARGV[5]

redis.call('ZREMRANGEBYSCORE', key, '0', window_start)

local count = redis.call('ZCARD', key)
if count < limit then
	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, window_ms)
	return 0
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if #oldest >= 2 then
	return tonumber(oldest[2])
end
return -1
`)

// RedisRateLimiter implements the RateLimiter interface with a sliding
// window shared by every service instance.
type RedisRateLimiter struct {
	client    redis.UniversalClient
	keyPrefix string
	limit     int
	window    time.Duration
}

// NewRedisRateLimiter creates a new Redis-based rate limiter.
func NewRedisRateLimiter(client redis.UniversalClient, config RateLimiterConfig) *RedisRateLimiter {
	def := DefaultRateLimiterConfig()
	if config.KeyPrefix == "" {
		config.KeyPrefix = def.KeyPrefix
	}
	if config.Limit <= 0 {
		config.Limit = def.Limit
	}
	if config.Window <= 0 {
		config.Window = def.Window
	}
	return &RedisRateLimiter{
		client:    client,
		keyPrefix: config.KeyPrefix,
		limit:     config.Limit,
		window:    config.Window,
	}
}

// Allow checks if a request would be allowed, without consuming a slot.
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	fullKey := r.keyPrefix + key
	windowStart := time.Now().Add(-r.window).UnixMicro()

	pipe := r.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, fullKey, "0", fmt.Sprintf("%d", windowStart))
	countCmd := pipe.ZCard(ctx, fullKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return true
	}
	return countCmd.Val() < int64(r.limit)
}

// Wait blocks until a slot is taken or ctx is done.
func (r *RedisRateLimiter) Wait(ctx context.Context, key string) error {
	fullKey := r.keyPrefix + key

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		now := time.Now()
		result, err := slidingWindow.Run(ctx, r.client, []string{fullKey},
			r.limit,
			now.Add(-r.window).UnixMicro(),
			now.UnixMicro(),
			r.window.Milliseconds(),
			uuid.NewString(),
		).Int64()
		if err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}

		if result == 0 {
			return nil
		}

		wait := r.window / time.Duration(r.limit)
		if result > 0 {
			wait = time.Until(time.UnixMicro(result).Add(r.window))
		}
		if wait <= 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
