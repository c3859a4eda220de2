// Package notify carries directory change events from writers to the org
// chart. Events only say that something changed; consumers re-read the full
// snapshot, so a dropped event is recovered by the next one.
package notify

import (
	"context"
	"sync"
)

type Table string

const (
	TablePersons       Table = "persons"
	TableSectors       Table = "sectors"
	TableOrganizations Table = "organizations"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	// OpResync is emitted when a feed may have missed events, e.g. after a
	// reconnect.
	OpResync Op = "resync"
)

// Change describes one committed directory write.
type Change struct {
	Table Table  `json:"table"`
	Op    Op     `json:"op"`
	ID    string `json:"id"`
}

type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

type Subscriber interface {
	// Subscribe streams changes until ctx is done, then closes the channel.
	Subscribe(ctx context.Context) (<-chan Change, error)
}

// Notifier publishes and subscribes.
type Notifier interface {
	Publisher
	Subscriber
}

const defaultBuffer = 16

// Broker fans changes out to in-process subscribers. A subscriber whose
// buffer is full misses the change.
type Broker struct {
	mu     sync.Mutex
	subs   map[chan Change]struct{}
	buffer int
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[chan Change]struct{}), buffer: defaultBuffer}
}

func (b *Broker) Publish(_ context.Context, change Change) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- change:
		default:
			droppedEvents.Inc()
		}
	}
	return nil
}

func (b *Broker) Subscribe(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch, nil
}

// Subscribers reports how many subscriptions are open.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
