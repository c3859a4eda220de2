// Package lockout throttles password guessing. Failed logins are counted per
// email and client address inside a sliding window; reaching the limit locks
// that pair out for a fixed duration.
package lockout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	dErrors "organograma/pkg/domain-errors"
	"organograma/pkg/requestcontext"
)

// Record is the failure state of one email/address pair.
type Record struct {
	Key           string
	FailureCount  int
	LastFailureAt time.Time
	LockedUntil   *time.Time
}

// IsLockedAt reports whether the record blocks logins at now.
func (r *Record) IsLockedAt(now time.Time) bool {
	return r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// Config holds the lockout thresholds. MaxAttempts of zero disables lockout.
type Config struct {
	MaxAttempts  int
	Window       time.Duration
	LockDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		Window:       15 * time.Minute,
		LockDuration: 15 * time.Minute,
	}
}

// Store persists failure records. Get returns nil, nil for an unknown key.
// RecordFailure increments the count, restarting it when the previous failure
// is older than window.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	RecordFailure(ctx context.Context, key string, now time.Time, window time.Duration) (*Record, error)
	Lock(ctx context.Context, key string, until time.Time) error
	Clear(ctx context.Context, key string) error
}

type Service struct {
	store  Store
	config Config
	logger *slog.Logger
}

type Option func(*Service)

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("lockout store is required")
	}
	s := &Service{
		store:  store,
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Key builds the record key for an email and client address.
func Key(email, ip string) string {
	return strings.ToLower(strings.TrimSpace(email)) + "|" + ip
}

// Check fails with a too_many_requests error while the pair is locked.
func (s *Service) Check(ctx context.Context, email, ip string) error {
	if s.config.MaxAttempts <= 0 {
		return nil
	}
	rec, err := s.store.Get(ctx, Key(email, ip))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read login lockout")
	}
	if rec == nil {
		return nil
	}
	now := requestcontext.Now(ctx)
	if !rec.IsLockedAt(now) {
		return nil
	}
	retry := int(math.Ceil(rec.LockedUntil.Sub(now).Seconds()))
	return dErrors.New(dErrors.CodeTooManyRequests,
		fmt.Sprintf("too many failed logins, retry in %d seconds", retry))
}

// RecordFailure counts a failed login and reports whether it locked the pair.
func (s *Service) RecordFailure(ctx context.Context, email, ip string) (bool, error) {
	if s.config.MaxAttempts <= 0 {
		return false, nil
	}
	key := Key(email, ip)
	now := requestcontext.Now(ctx)
	rec, err := s.store.RecordFailure(ctx, key, now, s.config.Window)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record login failure")
	}
	if rec.FailureCount < s.config.MaxAttempts || rec.IsLockedAt(now) {
		return false, nil
	}

	until := now.Add(s.config.LockDuration)
	if err := s.store.Lock(ctx, key, until); err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock login")
	}
	s.logger.WarnContext(ctx, "login locked",
		"failures", rec.FailureCount,
		"locked_until", until,
		"client_ip", ip,
		"request_id", requestcontext.RequestID(ctx),
	)
	return true, nil
}

// Clear forgets the failures of a pair after a successful login.
func (s *Service) Clear(ctx context.Context, email, ip string) error {
	if s.config.MaxAttempts <= 0 {
		return nil
	}
	if err := s.store.Clear(ctx, Key(email, ip)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear login failures")
	}
	return nil
}
