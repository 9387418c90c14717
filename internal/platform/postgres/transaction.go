package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type txKey struct{}

// TxFromContext returns the transaction RunInTx placed in ctx.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	t, ok := ctx.Value(txKey{}).(pgx.Tx)
	return t, ok
}

// Queryer is satisfied by pgx.Tx, *pgxpool.Pool and pgxmock pools.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type txStarter interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// TransactionManager runs callbacks inside a pgx transaction carried in the
// context. Nested calls join the outer transaction.
type TransactionManager struct {
	pool txStarter
}

func NewTransactionManager(pool txStarter) *TransactionManager {
	if pool == nil {
		return nil
	}
	return &TransactionManager{pool: pool}
}

// RunInTx executes fn in a read-write transaction. A nil manager runs fn
// directly, which is what the in-memory stores expect.
func (m *TransactionManager) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	if m == nil {
		return fn(ctx)
	}
	return m.within(ctx, pgx.TxOptions{AccessMode: pgx.ReadWrite}, fn)
}

// WithinReadOnly executes fn in a read-only transaction.
func (m *TransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if m == nil {
		return fn(ctx)
	}
	return m.within(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
}

func (m *TransactionManager) within(ctx context.Context, opts pgx.TxOptions, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("postgres: transaction function is required")
	}
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	pgTx, err := m.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	finished := false
	defer func() {
		if !finished {
			_ = pgTx.Rollback(ctx)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, pgTx)); err != nil {
		finished = true
		if rbErr := pgTx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("postgres: rollback: %w", rbErr))
		}
		return err
	}

	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	finished = true
	return nil
}

// QueryerFromContext returns the transaction in ctx, or fallback.
func QueryerFromContext(ctx context.Context, fallback Queryer) Queryer {
	if t, ok := TxFromContext(ctx); ok {
		return t
	}
	return fallback
}
