package lockout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "organograma/pkg/domain-errors"
	"organograma/pkg/requestcontext"
)

// mapStore is a minimal Store for exercising the service rules.
type mapStore struct {
	records map[string]*Record
	err     error
}

func newMapStore() *mapStore {
	return &mapStore{records: map[string]*Record{}}
}

func (m *mapStore) Get(_ context.Context, key string) (*Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.records[key], nil
}

func (m *mapStore) RecordFailure(_ context.Context, key string, now time.Time, window time.Duration) (*Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	rec, ok := m.records[key]
	if !ok {
		rec = &Record{Key: key}
		m.records[key] = rec
	}
	if rec.LastFailureAt.Before(now.Add(-window)) {
		rec.FailureCount = 0
	}
	rec.FailureCount++
	rec.LastFailureAt = now
	c := *rec
	return &c, nil
}

func (m *mapStore) Lock(_ context.Context, key string, until time.Time) error {
	m.records[key].LockedUntil = &until
	m.records[key].FailureCount = 0
	return nil
}

func (m *mapStore) Clear(_ context.Context, key string) error {
	delete(m.records, key)
	return nil
}

func TestService(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), now)
	cfg := Config{MaxAttempts: 2, Window: time.Minute, LockDuration: 30 * time.Second}

	t.Run("locks after the configured failures", func(t *testing.T) {
		svc, err := New(newMapStore(), WithConfig(cfg))
		require.NoError(t, err)

		locked, err := svc.RecordFailure(ctx, "Silva@eb.mil.br", "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, locked)
		require.NoError(t, svc.Check(ctx, "silva@eb.mil.br", "10.0.0.1"))

		locked, err = svc.RecordFailure(ctx, "silva@eb.mil.br", "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, locked)

		err = svc.Check(ctx, "silva@eb.mil.br", "10.0.0.1")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTooManyRequests))
		assert.Equal(t, "too many failed logins, retry in 30 seconds", dErrors.MessageOf(err))

		later := requestcontext.WithTime(ctx, now.Add(31*time.Second))
		assert.NoError(t, svc.Check(later, "silva@eb.mil.br", "10.0.0.1"))
	})

	t.Run("clear forgets failures", func(t *testing.T) {
		store := newMapStore()
		svc, err := New(store, WithConfig(cfg))
		require.NoError(t, err)

		_, err = svc.RecordFailure(ctx, "a@eb.mil.br", "ip")
		require.NoError(t, err)
		require.NoError(t, svc.Clear(ctx, "a@eb.mil.br", "ip"))
		assert.Empty(t, store.records)
	})

	t.Run("zero attempts disables the lockout", func(t *testing.T) {
		store := newMapStore()
		svc, err := New(store, WithConfig(Config{}))
		require.NoError(t, err)

		locked, err := svc.RecordFailure(ctx, "a@eb.mil.br", "ip")
		require.NoError(t, err)
		assert.False(t, locked)
		assert.Empty(t, store.records)
	})

	t.Run("store errors are internal", func(t *testing.T) {
		store := newMapStore()
		store.err = errors.New("down")
		svc, err := New(store)
		require.NoError(t, err)

		assert.True(t, dErrors.HasCode(svc.Check(ctx, "a", "ip"), dErrors.CodeInternal))
		_, err = svc.RecordFailure(ctx, "a", "ip")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	})

	t.Run("nil store is rejected", func(t *testing.T) {
		_, err := New(nil)
		assert.Error(t, err)
	})
}

func TestKey(t *testing.T) {
	assert.Equal(t, "silva@eb.mil.br|10.0.0.1", Key("  Silva@EB.mil.br ", "10.0.0.1"))
}
