// Package database opens the Redis connection shared by the provider cache
// and the rate limiters.
package database

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/carefinder/carefinder/logging"
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	TLSEnabled   bool
	PoolSize     int
	MinIdleConns int

	// ConnectRetries is the number of ping retries after the first attempt.
	ConnectRetries int
	// PingTimeout bounds each ping.
	PingTimeout time.Duration
}

// DefaultRedisConfig returns defaults for a single-node cache.
func DefaultRedisConfig(addr string) RedisConfig {
	return RedisConfig{
		Addr:           addr,
		PoolSize:       50,
		MinIdleConns:   5,
		ConnectRetries: 3,
		PingTimeout:    2 * time.Second,
	}
}

// Options converts the config to go-redis options.
func (c RedisConfig) Options() *redis.Options {
	opts := &redis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
	if c.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// ConnectRedis opens a client and pings it, retrying with exponential
// backoff. The client is closed when every attempt fails.
func ConnectRedis(ctx context.Context, config RedisConfig, logger *logging.Logger) (*redis.Client, error) {
	if config.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if config.PingTimeout <= 0 {
		config.PingTimeout = 2 * time.Second
	}
	logger = logging.OrNop(logger)

	client := redis.NewClient(config.Options())

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second

	var attempts int
	ping := func() error {
		attempts++
		pingCtx, cancel := context.WithTimeout(ctx, config.PingTimeout)
		defer cancel()
		return client.Ping(pingCtx).Err()
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("redis ping failed", "addr", config.Addr, "error", err.Error(), "retry_in", wait.String())
	}

	retries := uint64(max(config.ConnectRetries, 0))
	err := backoff.RetryNotify(ping, backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx), notify)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", attempts, err)
	}
	return client, nil
}
