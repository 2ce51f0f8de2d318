package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"restopos/internal/config"
	"restopos/internal/domain/usage"
	"restopos/internal/infrastructure/storage/postgres"
	"restopos/pkg/logger"
)

// errRetryUsage makes the relay reschedule an order whose usage was left incomplete.
var errRetryUsage = errors.New("usage incomplete, retry scheduled")

type outboxRelay interface {
	ProcessBatch(ctx context.Context) (int, error)
	MoveToDLQ(ctx context.Context) (int64, error)
	CleanupPublished(ctx context.Context, retention time.Duration) (int64, error)
}

type idempotencyCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

type historyTrimmer interface {
	TrimHistories(ctx context.Context, keep int) (int64, error)
}

type orderApplier interface {
	Apply(ctx context.Context, order usage.OrderCreated) usage.Result
}

// newUsageHandler applies order.created messages through the usage pipeline.
func newUsageHandler(pipeline orderApplier) postgres.OutboxHandler {
	return postgres.OutboxHandlerFunc(func(ctx context.Context, msg *postgres.OutboxMessage) error {
		var order usage.OrderCreated
		if err := msg.Decode(&order); err != nil {
			// Malformed payloads exhaust their retries and land in the DLQ.
			return fmt.Errorf("decode order: %w", err)
		}

		result := pipeline.Apply(ctx, order)
		logger.Info(ctx, "order usage applied",
			"order_id", result.OrderID,
			"buckets", len(result.Buckets),
			"applied", result.Applied(),
			"shortages", result.ShortageBucket,
			"lines_skipped", result.LinesSkipped)

		if result.Retry {
			return errRetryUsage
		}
		return nil
	})
}

// Worker polls the outbox and runs periodic housekeeping.
type Worker struct {
	relay       outboxRelay
	idempotency idempotencyCleaner
	histories   historyTrimmer
	cfg         config.WorkerConfig
	log         *logger.Logger
}

func (w *Worker) Run(ctx context.Context) {
	poll := w.cfg.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	cleanup := w.cfg.CleanupInterval
	if cleanup <= 0 {
		cleanup = time.Hour
	}

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(cleanup)
	defer cleanupTicker.Stop()

	ctx = logger.WithLogger(ctx, w.log)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		case <-cleanupTicker.C:
			w.cleanup(ctx)
		}
	}
}

// drain processes batches until one comes back short.
func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := w.relay.ProcessBatch(ctx)
		if err != nil {
			w.log.Errorw("outbox batch failed", "error", err)
			return
		}
		if n > 0 {
			w.log.Debugw("processed outbox batch", "count", n)
		}
		if n == 0 || (w.cfg.BatchSize > 0 && n < w.cfg.BatchSize) {
			return
		}
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	if n, err := w.relay.MoveToDLQ(ctx); err != nil {
		w.log.Errorw("failed to move outbox messages to dlq", "error", err)
	} else if n > 0 {
		w.log.Warnw("outbox messages moved to dlq", "count", n)
	}

	if w.cfg.OutboxRetention > 0 {
		if n, err := w.relay.CleanupPublished(ctx, w.cfg.OutboxRetention); err != nil {
			w.log.Errorw("failed to clean up outbox", "error", err)
		} else if n > 0 {
			w.log.Infow("cleaned up published outbox messages", "count", n)
		}
	}

	if n, err := w.idempotency.CleanupExpired(ctx); err != nil {
		w.log.Errorw("failed to clean up idempotency keys", "error", err)
	} else if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}

	if w.cfg.HistoryRetention > 0 {
		if n, err := w.histories.TrimHistories(ctx, w.cfg.HistoryRetention); err != nil {
			w.log.Errorw("failed to trim supplier histories", "error", err)
		} else if n > 0 {
			w.log.Infow("trimmed supplier histories", "count", n)
		}
	}
}
