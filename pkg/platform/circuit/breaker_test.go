package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker(t *testing.T) {
	t.Run("starts closed", func(t *testing.T) {
		b := New("redis")
		assert.Equal(t, StateClosed, b.State())
		assert.Equal(t, "redis", b.Name())
	})

	t.Run("opens on the threshold failure only", func(t *testing.T) {
		b := New("redis", WithFailureThreshold(2))

		useFallback, change := b.RecordFailure()
		assert.False(t, useFallback)
		assert.False(t, change.Opened)

		useFallback, change = b.RecordFailure()
		assert.True(t, useFallback)
		assert.True(t, change.Opened)

		useFallback, change = b.RecordFailure()
		assert.True(t, useFallback)
		assert.False(t, change.Opened)
	})

	t.Run("a success while closed restarts the failure count", func(t *testing.T) {
		b := New("redis", WithFailureThreshold(2))
		b.RecordFailure()
		b.RecordSuccess()
		b.RecordFailure()
		assert.False(t, b.IsOpen())
	})

	t.Run("closes after consecutive successes", func(t *testing.T) {
		b := New("redis", WithFailureThreshold(1), WithSuccessThreshold(2))
		b.RecordFailure()
		require.True(t, b.IsOpen())

		usePrimary, _ := b.RecordSuccess()
		assert.False(t, usePrimary)

		b.RecordFailure()
		b.RecordSuccess()
		assert.True(t, b.IsOpen())

		usePrimary, change := b.RecordSuccess()
		assert.True(t, usePrimary)
		assert.True(t, change.Closed)
		assert.Equal(t, "closed", b.State().String())
	})

	t.Run("open breaker allows one trial per cooldown", func(t *testing.T) {
		now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
		b := New("redis", WithFailureThreshold(1), WithCooldown(time.Minute), WithClock(func() time.Time { return now }))
		assert.True(t, b.Allow())
		b.RecordFailure()
		require.True(t, b.IsOpen())
		assert.False(t, b.Allow())

		now = now.Add(time.Minute)
		assert.True(t, b.Allow())
		assert.False(t, b.Allow(), "only one trial until it reports back")

		b.RecordFailure()
		now = now.Add(30 * time.Second)
		assert.False(t, b.Allow(), "a failed trial restarts the cooldown")
	})

	t.Run("successful trials keep the primary in use until it closes", func(t *testing.T) {
		now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
		b := New("redis", WithFailureThreshold(1), WithSuccessThreshold(2),
			WithCooldown(time.Minute), WithClock(func() time.Time { return now }))
		b.RecordFailure()
		now = now.Add(time.Minute)

		require.True(t, b.Allow())
		b.RecordSuccess()
		require.True(t, b.Allow())
		_, change := b.RecordSuccess()
		assert.True(t, change.Closed)
		assert.True(t, b.Allow())
	})

	t.Run("reset", func(t *testing.T) {
		b := New("redis", WithFailureThreshold(1))
		b.RecordFailure()
		b.Reset()
		assert.False(t, b.IsOpen())
		assert.True(t, b.Allow())
	})
}
