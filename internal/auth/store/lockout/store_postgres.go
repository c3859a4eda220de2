package lockout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"organograma/internal/auth/lockout"
)

// PostgresStore persists login failure records in the login_lockouts table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*lockout.Record, error) {
	query := `
		SELECT key, failure_count, last_failure_at, locked_until
		FROM login_lockouts
		WHERE key = $1
	`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get login lockout: %w", err)
	}
	return rec, nil
}

// RecordFailure increments the count in a single statement so concurrent
// failures cannot slip past the threshold.
func (s *PostgresStore) RecordFailure(ctx context.Context, key string, now time.Time, window time.Duration) (*lockout.Record, error) {
	query := `
		INSERT INTO login_lockouts (key, failure_count, last_failure_at, locked_until)
		VALUES ($1, 1, $2, NULL)
		ON CONFLICT (key) DO UPDATE SET
			failure_count = CASE
				WHEN login_lockouts.last_failure_at < $3 THEN 1
				ELSE login_lockouts.failure_count + 1
			END,
			last_failure_at = $2
		RETURNING key, failure_count, last_failure_at, locked_until
	`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, key, now, now.Add(-window)))
	if err != nil {
		return nil, fmt.Errorf("record login failure: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Lock(ctx context.Context, key string, until time.Time) error {
	query := `
		INSERT INTO login_lockouts (key, failure_count, last_failure_at, locked_until)
		VALUES ($1, 0, $2, $2)
		ON CONFLICT (key) DO UPDATE SET
			failure_count = 0,
			locked_until = EXCLUDED.locked_until
	`
	if _, err := s.db.ExecContext(ctx, query, key, until); err != nil {
		return fmt.Errorf("lock login: %w", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM login_lockouts WHERE key = $1`, key); err != nil {
		return fmt.Errorf("clear login lockout: %w", err)
	}
	return nil
}

// DeleteExpired drops records that are neither locked nor inside window at now.
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time, window time.Duration) (int, error) {
	query := `
		DELETE FROM login_lockouts
		WHERE last_failure_at < $2
		  AND (locked_until IS NULL OR locked_until <= $1)
	`
	res, err := s.db.ExecContext(ctx, query, now, now.Add(-window))
	if err != nil {
		return 0, fmt.Errorf("delete expired login lockouts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired login lockouts rows affected: %w", err)
	}
	return int(n), nil
}

type row interface {
	Scan(dest ...any) error
}

func scanRecord(r row) (*lockout.Record, error) {
	var rec lockout.Record
	var lockedUntil sql.NullTime
	if err := r.Scan(&rec.Key, &rec.FailureCount, &rec.LastFailureAt, &lockedUntil); err != nil {
		return nil, err
	}
	if lockedUntil.Valid {
		rec.LockedUntil = &lockedUntil.Time
	}
	return &rec, nil
}
