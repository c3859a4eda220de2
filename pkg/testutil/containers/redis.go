//go:build integration

// Package containers starts throwaway backing services for integration
// tests. Every container is terminated when its test finishes.
package containers

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

type RedisContainer struct {
	Container testcontainers.Container
	URL       string
	Client    *redis.Client
}

func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	c, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, c)
	require.NoError(t, err, "start redis")

	url, err := c.ConnectionString(ctx)
	require.NoError(t, err, "redis connection string")
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err(), "ping redis")

	return &RedisContainer{Container: c, URL: url, Client: client}
}

// Keys lists the keys matching pattern.
func (r *RedisContainer) Keys(t *testing.T, pattern string) []string {
	t.Helper()
	keys, err := r.Client.Keys(context.Background(), pattern).Result()
	require.NoError(t, err)
	return keys
}
