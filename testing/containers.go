// Package testing provides test utilities and helpers.
package testing

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisContainer provides a Redis container for testing.
type RedisContainer struct {
	*redis.RedisContainer
	ConnectionString string
}

// StartRedisContainer starts a Redis container for integration tests.
func StartRedisContainer(ctx context.Context) (*RedisContainer, error) {
	container, err := redis.Run(ctx,
		"redis:7-alpine",
		redis.WithLogLevel(redis.LogLevelNotice),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start Redis container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get Redis connection string: %w", err)
	}

	return &RedisContainer{
		RedisContainer:   container,
		ConnectionString: connStr,
	}, nil
}

// Client opens a go-redis client against the container.
func (c *RedisContainer) Client() (*goredis.Client, error) {
	opts, err := goredis.ParseURL(c.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis connection string: %w", err)
	}
	return goredis.NewClient(opts), nil
}

// ContainerCleanup provides a cleanup function for t.Cleanup.
type ContainerCleanup interface {
	Terminate(ctx context.Context) error
}

// CleanupContainer returns a cleanup function for testing.T.Cleanup.
func CleanupContainer(ctx context.Context, c ContainerCleanup) func() {
	return func() {
		if err := c.Terminate(ctx); err != nil {
			// Log but don't fail on cleanup
			fmt.Printf("failed to terminate container: %v\n", err)
		}
	}
}
