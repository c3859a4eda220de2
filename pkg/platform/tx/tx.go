// Package tx carries a SQL transaction through context so stores join the
// caller's transaction, and provides the transaction runners services use.
package tx

import (
	"context"
	"database/sql"
	"sync"
	"time"

	dErrors "organograma/pkg/domain-errors"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// QuerierFrom returns the transaction in ctx, or db when there is none.
func QuerierFrom(ctx context.Context, db *sql.DB) Querier {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return db
}

// Runner executes fn atomically. fn must use the context it is given.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

const defaultTimeout = 5 * time.Second

// Local serializes callers with a single lock. It backs in-memory stores.
type Local struct {
	mu sync.Mutex
}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

// Postgres runs fn inside a database transaction. When lockKey is non-zero
// the transaction first takes that advisory lock, serializing writers that
// must see each other's effects.
type Postgres struct {
	db      *sql.DB
	lockKey int64
	timeout time.Duration
}

type PostgresOption func(*Postgres)

// WithAdvisoryLock serializes transactions on key.
func WithAdvisoryLock(key int64) PostgresOption {
	return func(p *Postgres) { p.lockKey = key }
}

func WithTimeout(d time.Duration) PostgresOption {
	return func(p *Postgres) { p.timeout = d }
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *Postgres {
	p := &Postgres{db: db, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Postgres) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	sqlTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if p.lockKey != 0 {
		if _, err := sqlTx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, p.lockKey); err != nil {
			return err
		}
	}

	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	return sqlTx.Commit()
}
