//go:build integration

package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"organograma/pkg/testutil/containers"
)

func TestPGListenerReceivesTriggerNotifications(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	listener, err := NewPGListener(pg.DSN, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := listener.Subscribe(ctx)
	require.NoError(t, err)
	go func() { _ = listener.Run(ctx) }()

	id := uuid.NewString()
	_, err = pg.DB.ExecContext(ctx, `
		INSERT INTO sectors (id, name, created_at, updated_at) VALUES ($1, 'Comando', now(), now())`, id)
	require.NoError(t, err)

	select {
	case c := <-changes:
		assert.Equal(t, Change{Table: TableSectors, Op: OpInsert, ID: id}, c)
	case <-time.After(10 * time.Second):
		t.Fatal("no notification received")
	}
}

func TestRedisNotifierRoundTrip(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	n := NewRedisNotifier(rc.Client, "", logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := n.Subscribe(ctx)
	require.NoError(t, err)

	want := Change{Table: TablePersons, Op: OpUpdate, ID: "p-1"}
	require.NoError(t, n.Publish(ctx, want))

	select {
	case got := <-changes:
		assert.Equal(t, want, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no change received")
	}
}
