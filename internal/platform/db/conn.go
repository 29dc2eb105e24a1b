package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the query surface shared by *pgxpool.Pool, pgx.Tx and pgxmock.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Pool is a Querier that can also start transactions.
type Pool interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

type contextKey string

const txKey contextKey = "db_tx"

// WithQuerier binds q to ctx so repositories run their statements on it.
func WithQuerier(ctx context.Context, q Querier) context.Context {
	return context.WithValue(ctx, txKey, q)
}

// QuerierFromContext returns the transaction bound to ctx, if any.
func QuerierFromContext(ctx context.Context) Querier {
	q, _ := ctx.Value(txKey).(Querier)
	return q
}

// Conn returns the transaction bound to ctx, falling back to the pool.
func Conn(ctx context.Context, pool Querier) Querier {
	if q := QuerierFromContext(ctx); q != nil {
		return q
	}
	return pool
}

// TxRunner runs fn as a single transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type pgTxRunner struct{ pool Pool }

func NewTxRunner(pool Pool) TxRunner { return &pgTxRunner{pool: pool} }

// WithinTx begins a transaction, binds it to the context passed to fn and
// commits when fn returns nil. A context that already carries a transaction
// joins it instead of nesting.
func (r *pgTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if QuerierFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	done := false
	defer func() {
		if !done {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(WithQuerier(ctx, tx)); err != nil {
		return err
	}
	done = true
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// AdvisoryXactLock takes a transaction-scoped advisory lock on key. The lock is
// released when the surrounding transaction commits or rolls back.
func AdvisoryXactLock(ctx context.Context, q Querier, key string) error {
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("advisory lock %q: %w", key, err)
	}
	return nil
}
