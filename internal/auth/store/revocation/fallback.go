package revocation

import (
	"context"
	"log/slog"
	"time"

	"organograma/pkg/platform/circuit"
)

// Store is a token revocation list backend.
type Store interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// FallbackTRL fronts a shared list with a process-local one. Every revocation
// is kept locally too, so a failing primary degrades to per-instance
// revocation instead of failing requests. While the breaker is open the
// primary is skipped apart from the breaker's trial calls.
type FallbackTRL struct {
	primary Store
	local   *InMemoryTRL
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewFallbackTRL(primary Store, local *InMemoryTRL, breaker *circuit.Breaker, logger *slog.Logger) *FallbackTRL {
	return &FallbackTRL{primary: primary, local: local, breaker: breaker, logger: logger}
}

func (t *FallbackTRL) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if err := t.local.RevokeToken(ctx, jti, ttl); err != nil {
		return err
	}
	if !t.breaker.Allow() {
		return nil
	}
	if err := t.primary.RevokeToken(ctx, jti, ttl); err != nil {
		t.failed(ctx, "revoke", err)
		return nil
	}
	t.succeeded(ctx)
	return nil
}

func (t *FallbackTRL) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if revoked, _ := t.local.IsRevoked(ctx, jti); revoked {
		return true, nil
	}
	if !t.breaker.Allow() {
		return false, nil
	}
	revoked, err := t.primary.IsRevoked(ctx, jti)
	if err != nil {
		t.failed(ctx, "check", err)
		return false, nil
	}
	t.succeeded(ctx)
	return revoked, nil
}

// Purge drops expired local entries.
func (t *FallbackTRL) Purge(ctx context.Context) (int64, error) {
	return int64(t.local.Purge(ctx)), nil
}

func (t *FallbackTRL) failed(ctx context.Context, op string, err error) {
	_, change := t.breaker.RecordFailure()
	if change.Opened {
		t.logger.ErrorContext(ctx, "revocation list degraded to local fallback", "breaker", t.breaker.Name(), "error", err)
		return
	}
	t.logger.WarnContext(ctx, "revocation list primary failed", "op", op, "error", err)
}

func (t *FallbackTRL) succeeded(ctx context.Context) {
	if _, change := t.breaker.RecordSuccess(); change.Closed {
		t.logger.InfoContext(ctx, "revocation list primary recovered", "breaker", t.breaker.Name())
	}
}
