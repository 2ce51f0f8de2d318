// Package numerator allocates reference numbers from the sys_sequences table.
package numerator

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "restopos/internal/core/numerator"
	"restopos/internal/infrastructure/storage/postgres"
)

// Querier is the subset of pgx used for sequence updates.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service draws numbers with an upsert on the caller's transaction, so a
// rolled back document releases its number.
type Service struct {
	querier func(ctx context.Context) Querier
}

var _ corenumerator.Generator = (*Service)(nil)

// New creates a numerator bound to the transaction carried by ctx.
func New(txManager *postgres.TxManager) *Service {
	return &Service{querier: func(ctx context.Context) Querier { return txManager.GetQuerier(ctx) }}
}

func (s *Service) Next(ctx context.Context, cfg corenumerator.Config, at time.Time) (string, error) {
	if cfg.Prefix == "" {
		return "", fmt.Errorf("numerator prefix is required")
	}
	key := corenumerator.Key(cfg, at)

	var n int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val
	`, key).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("next number for %s: %w", key, err)
	}
	return corenumerator.Format(cfg, at, n), nil
}
