//go:build integration

package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"organograma/pkg/testutil/containers"
)

type revocationList interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

func exerciseRevocationList(t *testing.T, trl revocationList) {
	ctx := context.Background()

	revoked, err := trl.IsRevoked(ctx, "jti-unknown")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, trl.RevokeToken(ctx, "jti-1", time.Minute))
	revoked, err = trl.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	assert.Error(t, trl.RevokeToken(ctx, "jti-2", 0))
}

func TestRedisTRL(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	trl := NewRedisTRL(rc.Client, WithKeyPrefix("test:trl:"))

	exerciseRevocationList(t, trl)
	assert.Contains(t, rc.Keys(t, "test:trl:*"), "test:trl:jti-1")

	t.Run("key expires with the token", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, trl.RevokeToken(ctx, "jti-short", time.Second))

		ttl, err := rc.Client.TTL(ctx, "test:trl:jti-short").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, time.Second)
	})
}

func TestPostgresTRL(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	now := time.Now()
	trl := NewPostgresTRL(pg.DB, WithPostgresClock(func() time.Time { return now }))

	exerciseRevocationList(t, trl)

	t.Run("purge drops expired entries", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, trl.RevokeToken(ctx, "jti-old", time.Second))

		later := NewPostgresTRL(pg.DB, WithPostgresClock(func() time.Time { return now.Add(2 * time.Second) }))
		revoked, err := later.IsRevoked(ctx, "jti-old")
		require.NoError(t, err)
		assert.False(t, revoked)

		n, err := later.Purge(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		revoked, err = later.IsRevoked(ctx, "jti-1")
		require.NoError(t, err)
		assert.True(t, revoked, "unexpired entries survive the purge")
	})
}
