package lockout

import (
	"context"
	"sync"
	"time"

	"organograma/internal/auth/lockout"
)

// InMemoryStore keeps login failure records in a map.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[string]*lockout.Record
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]*lockout.Record)}
}

func (s *InMemoryStore) Get(_ context.Context, key string) (*lockout.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return copyRecord(rec), nil
}

func (s *InMemoryStore) RecordFailure(_ context.Context, key string, now time.Time, window time.Duration) (*lockout.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		rec = &lockout.Record{Key: key}
		s.records[key] = rec
	}
	if rec.FailureCount > 0 && rec.LastFailureAt.Before(now.Add(-window)) {
		rec.FailureCount = 0
	}
	rec.FailureCount++
	rec.LastFailureAt = now
	return copyRecord(rec), nil
}

func (s *InMemoryStore) Lock(_ context.Context, key string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		rec = &lockout.Record{Key: key}
		s.records[key] = rec
	}
	rec.LockedUntil = &until
	rec.FailureCount = 0
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// DeleteExpired drops records that are neither locked nor inside window at now.
func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, rec := range s.records {
		if rec.IsLockedAt(now) || !rec.LastFailureAt.Before(now.Add(-window)) {
			continue
		}
		delete(s.records, key)
		n++
	}
	return n, nil
}

func copyRecord(rec *lockout.Record) *lockout.Record {
	c := *rec
	if rec.LockedUntil != nil {
		t := *rec.LockedUntil
		c.LockedUntil = &t
	}
	return &c
}
