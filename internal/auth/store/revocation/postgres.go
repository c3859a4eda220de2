package revocation

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresTRL keeps the revocation list in the token_revocations table so
// every instance sharing the database sees a logout.
type PostgresTRL struct {
	db    *sql.DB
	clock Clock
}

type PostgresTRLOption func(*PostgresTRL)

func WithPostgresClock(clock Clock) PostgresTRLOption {
	return func(t *PostgresTRL) {
		if clock != nil {
			t.clock = clock
		}
	}
}

func NewPostgresTRL(db *sql.DB, opts ...PostgresTRLOption) *PostgresTRL {
	t := &PostgresTRL{db: db, clock: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RevokeToken records jti until ttl from now. Revoking twice keeps the later
// expiry.
func (t *PostgresTRL) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO token_revocations (jti, expires_at) VALUES ($1, $2)
		ON CONFLICT (jti) DO UPDATE
		SET expires_at = GREATEST(token_revocations.expires_at, EXCLUDED.expires_at)`,
		jti, t.clock().Add(ttl))
	if err != nil {
		return fmt.Errorf("insert token revocation: %w", err)
	}
	return nil
}

func (t *PostgresTRL) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := t.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM token_revocations WHERE jti = $1 AND expires_at > $2)`,
		jti, t.clock()).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("query token revocation: %w", err)
	}
	return revoked, nil
}

// Purge deletes entries whose token has expired.
func (t *PostgresTRL) Purge(ctx context.Context) (int64, error) {
	res, err := t.db.ExecContext(ctx, `DELETE FROM token_revocations WHERE expires_at <= $1`, t.clock())
	if err != nil {
		return 0, fmt.Errorf("purge token revocations: %w", err)
	}
	return res.RowsAffected()
}
