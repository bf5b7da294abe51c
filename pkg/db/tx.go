package db

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgx operations repositories need. Both
// *pgxpool.Pool and pgx.Tx satisfy it, so the same repository code runs
// standalone or inside a settlement transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// Q returns the transaction carried in ctx, or the pool when no
// transaction is open.
func Q(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// Runner executes engine operations as all-or-nothing units. The engine's
// execution model is a single global sequential transaction log: one
// operation commits or fully aborts before the next one starts.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type poolRunner struct {
	pool *pgxpool.Pool
	seq  sync.Mutex
}

func NewRunner(pool *pgxpool.Pool) Runner {
	return &poolRunner{pool: pool}
}

// RunInTx begins a transaction, stores it in ctx for repositories to pick
// up, and commits when fn returns nil or rolls everything back on error.
// A nested call joins the ambient transaction instead of opening a new
// one, so a lending operation and the custody moves it triggers share one
// commit point.
func (r *poolRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	r.seq.Lock()
	defer r.seq.Unlock()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
