package audit

import (
	"context"

	"organograma/pkg/requestcontext"
)

// Store is an append-only audit sink.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Emit fills the timestamp, request id and actor from ctx when unset.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ActorID == "" {
		event.ActorID = requestcontext.UserID(ctx)
	}
	if err := p.store.Append(ctx, event); err != nil {
		emitFailures.Inc()
		return err
	}
	emitted.WithLabelValues(string(event.Action)).Inc()
	return nil
}
