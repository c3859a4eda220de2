package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// PostgresChannel is the NOTIFY channel the directory triggers publish on.
const PostgresChannel = "directory_changes"

// PGListener turns Postgres NOTIFY payloads into Changes. Writes made by any
// process, including ones bypassing this service, show up here.
type PGListener struct {
	listener *pq.Listener
	broker   *Broker
	logger   *slog.Logger
}

// NewPGListener opens a dedicated LISTEN connection to dsn.
func NewPGListener(dsn string, logger *slog.Logger) (*PGListener, error) {
	l := &PGListener{broker: NewBroker(), logger: logger}
	l.listener = pq.NewListener(dsn, time.Second, time.Minute, l.onEvent)
	if err := l.listener.Listen(PostgresChannel); err != nil {
		_ = l.listener.Close()
		return nil, fmt.Errorf("listen %s: %w", PostgresChannel, err)
	}
	return l, nil
}

func (l *PGListener) onEvent(event pq.ListenerEventType, err error) {
	switch event {
	case pq.ListenerEventDisconnected:
		l.logger.Warn("directory change feed disconnected", "error", err)
	case pq.ListenerEventConnectionAttemptFailed:
		l.logger.Warn("directory change feed reconnect failed", "error", err)
	case pq.ListenerEventReconnected:
		l.logger.Info("directory change feed reconnected")
	}
}

// Run forwards notifications to subscribers until ctx is done.
func (l *PGListener) Run(ctx context.Context) error {
	keepalive := time.NewTicker(90 * time.Second)
	defer keepalive.Stop()
	for {
		select {
		case <-ctx.Done():
			return l.listener.Close()
		case n := <-l.listener.Notify:
			// nil after a reconnect: notifications may have been lost
			if n == nil {
				_ = l.broker.Publish(ctx, Change{Op: OpResync})
				continue
			}
			receivedEvents.WithLabelValues("postgres").Inc()
			change, err := decodeChange([]byte(n.Extra))
			if err != nil {
				l.logger.WarnContext(ctx, "ignoring malformed directory notification",
					"payload", n.Extra,
					"error", err,
				)
				continue
			}
			_ = l.broker.Publish(ctx, change)
		case <-keepalive.C:
			if err := l.listener.Ping(); err != nil {
				l.logger.WarnContext(ctx, "directory change feed ping failed", "error", err)
			}
		}
	}
}

func (l *PGListener) Subscribe(ctx context.Context) (<-chan Change, error) {
	return l.broker.Subscribe(ctx)
}

func decodeChange(payload []byte) (Change, error) {
	var change Change
	if err := json.Unmarshal(payload, &change); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	if change.Table == "" || change.Op == "" {
		return Change{}, fmt.Errorf("decode change: missing table or op")
	}
	return change, nil
}
