package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "organograma/pkg/domain-errors"
)

func TestInMemoryTRL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	trl := NewInMemoryTRL(WithClock(func() time.Time { return now }))

	t.Run("revoked token is reported until its ttl elapses", func(t *testing.T) {
		require.NoError(t, trl.RevokeToken(ctx, "jti-1", time.Minute))

		revoked, err := trl.IsRevoked(ctx, "jti-1")
		require.NoError(t, err)
		assert.True(t, revoked)

		now = now.Add(2 * time.Minute)
		revoked, err = trl.IsRevoked(ctx, "jti-1")
		require.NoError(t, err)
		assert.False(t, revoked)
		assert.Equal(t, 1, trl.Purge(ctx))
	})

	t.Run("unknown token is not revoked", func(t *testing.T) {
		revoked, err := trl.IsRevoked(ctx, "never-seen")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("empty jti is ignored", func(t *testing.T) {
		require.NoError(t, trl.RevokeToken(ctx, "", time.Minute))
	})

	t.Run("non-positive ttl is rejected", func(t *testing.T) {
		err := trl.RevokeToken(ctx, "jti-2", 0)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}
