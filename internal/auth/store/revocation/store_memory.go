// Package revocation keeps the list of access tokens invalidated by logout.
// Entries live until the token would have expired anyway.
package revocation

import (
	"context"
	"sync"
	"time"
)

// InMemoryTRL is a process-local token revocation list.
type InMemoryTRL struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
	clock   Clock
}

type InMemoryTRLOption func(*InMemoryTRL)

func WithClock(clock Clock) InMemoryTRLOption {
	return func(t *InMemoryTRL) {
		if clock != nil {
			t.clock = clock
		}
	}
}

func NewInMemoryTRL(opts ...InMemoryTRLOption) *InMemoryTRL {
	t := &InMemoryTRL{
		revoked: make(map[string]time.Time),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *InMemoryTRL) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.revoked[jti] = t.clock().Add(ttl)
	return nil
}

func (t *InMemoryTRL) IsRevoked(_ context.Context, jti string) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	expiresAt, ok := t.revoked[jti]
	if !ok {
		return false, nil
	}
	return t.clock().Before(expiresAt), nil
}

// Purge drops entries whose token has expired and returns how many.
func (t *InMemoryTRL) Purge(_ context.Context) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	n := 0
	for jti, expiresAt := range t.revoked {
		if !now.Before(expiresAt) {
			delete(t.revoked, jti)
			n++
		}
	}
	return n
}
