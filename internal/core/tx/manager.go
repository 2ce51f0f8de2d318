// Package tx defines the transaction boundary used by domain services.
// Services depend on Manager; the pgx implementation lives in infrastructure/storage/postgres.
package tx

import (
	"context"
)

// Manager runs a unit of work inside a database transaction.
type Manager interface {
	// RunInTransaction executes fn within a transaction.
	// The transaction is rolled back when fn returns an error and committed otherwise.
	// Nested calls reuse the transaction already carried by ctx.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transactions for report queries.
type ReadOnlyManager interface {
	Manager

	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}

// Nop runs fn directly. Used by unit tests and by callers with no database behind them.
type Nop struct{}

func (Nop) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (Nop) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
