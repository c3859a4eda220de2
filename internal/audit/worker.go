package audit

import (
	"context"
	"errors"
	"log/slog"
)

// ErrBufferFull is returned by AsyncStore.Append when the worker is behind.
var ErrBufferFull = errors.New("audit buffer full")

// AsyncStore queues events and lets a Worker deliver them, so slow sinks
// never add latency to requests.
type AsyncStore struct {
	inbox chan Event
}

func NewAsyncStore(buffer int) *AsyncStore {
	return &AsyncStore{inbox: make(chan Event, buffer)}
}

func (s *AsyncStore) Append(_ context.Context, event Event) error {
	select {
	case s.inbox <- event:
		return nil
	default:
		dropped.Inc()
		return ErrBufferFull
	}
}

// Worker consumes queued audit events and persists them.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, queue *AsyncStore, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: queue.inbox, logger: logger}
}

// Run delivers events until ctx is done, then flushes what is already
// queued using a context that is not cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain(context.WithoutCancel(ctx))
			return ctx.Err()
		case event := <-w.inbox:
			w.deliver(ctx, event)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for {
		select {
		case event := <-w.inbox:
			w.deliver(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) deliver(ctx context.Context, event Event) {
	if err := w.store.Append(ctx, event); err != nil {
		w.logger.ErrorContext(ctx, "failed to deliver audit event",
			"action", event.Action,
			"subject", event.Subject,
			"request_id", event.RequestID,
			"error", err,
		)
	}
}
