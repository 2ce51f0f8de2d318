package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"restopos/internal/core/events"
	"restopos/internal/core/id"
	"restopos/pkg/logger"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxMessage represents a message in the transactional outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"`
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"`
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

// Decode unmarshals the payload into v.
func (m *OutboxMessage) Decode(v any) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.EventType, err)
	}
	return nil
}

var _ events.Publisher = (*OutboxPublisher)(nil)

// OutboxPublisher writes events to the outbox table in the caller's transaction.
type OutboxPublisher struct {
	txManager *TxManager
}

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txManager: txManager}
}

const insertOutboxSQL = `
	INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// Publish writes an event to the outbox. It MUST be called inside a transaction.
func (p *OutboxPublisher) Publish(ctx context.Context, event events.Event) error {
	t := p.txManager.GetTx(ctx)
	if t == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = t.Exec(ctx, insertOutboxSQL,
		id.New(), event.AggregateType, event.AggregateID, event.Type, payload, OutboxStatusPending, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// PublishBatch writes several events in one round trip.
func (p *OutboxPublisher) PublishBatch(ctx context.Context, evts []events.Event) error {
	if len(evts) == 0 {
		return nil
	}
	t := p.txManager.GetTx(ctx)
	if t == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()
	for _, event := range evts {
		payload, err := json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		batch.Queue(insertOutboxSQL,
			id.New(), event.AggregateType, event.AggregateID, event.Type, payload, OutboxStatusPending, now)
	}

	results := t.SendBatch(ctx, batch)
	defer results.Close()

	for range evts {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert outbox message: %w", err)
		}
	}
	return nil
}

// OutboxHandler processes outbox messages. A returned error schedules a retry.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error {
	return f(ctx, msg)
}

// OutboxRouter dispatches messages to the handlers registered for their event type.
// Messages without handlers are acknowledged.
type OutboxRouter struct {
	handlers map[string][]OutboxHandler
}

func NewOutboxRouter() *OutboxRouter {
	return &OutboxRouter{handlers: make(map[string][]OutboxHandler)}
}

// Route registers h for the event types.
func (r *OutboxRouter) Route(h OutboxHandler, eventTypes ...string) *OutboxRouter {
	for _, t := range eventTypes {
		r.handlers[t] = append(r.handlers[t], h)
	}
	return r
}

// Handle runs every handler for the message type and joins their errors.
func (r *OutboxRouter) Handle(ctx context.Context, msg *OutboxMessage) error {
	var errs []error
	for _, h := range r.handlers[msg.EventType] {
		if err := h.Handle(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RelayOptions tunes the outbox relay.
type RelayOptions struct {
	BatchSize  int
	MaxRetries int
	// Backoff is multiplied by the attempt number.
	Backoff time.Duration
	// Lease hides claimed messages from other relays while they are processed.
	Lease time.Duration
}

// DefaultRelayOptions returns the relay defaults.
func DefaultRelayOptions() RelayOptions {
	return RelayOptions{
		BatchSize:  50,
		MaxRetries: 5,
		Backoff:    time.Minute,
		Lease:      5 * time.Minute,
	}
}

// OutboxRelay claims pending messages and hands them to a handler.
type OutboxRelay struct {
	txManager *TxManager
	handler   OutboxHandler
	opts      RelayOptions
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(txManager *TxManager, handler OutboxHandler, opts RelayOptions) *OutboxRelay {
	def := DefaultRelayOptions()
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = def.MaxRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = def.Backoff
	}
	if opts.Lease <= 0 {
		opts.Lease = def.Lease
	}
	return &OutboxRelay{txManager: txManager, handler: handler, opts: opts}
}

// ProcessBatch claims and processes one batch of due messages.
// Returns the number of messages handled successfully.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	messages, err := r.claim(ctx)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, msg := range messages {
		if err := r.processMessage(ctx, msg); err != nil {
			logger.Warn(ctx, "outbox message failed",
				"message_id", msg.ID,
				"event_type", msg.EventType,
				"attempt", msg.RetryCount+1,
				"error", err)
			continue
		}
		processed++
	}
	return processed, nil
}

// claim leases due messages in a single statement so concurrent relays never
// pick the same message.
func (r *OutboxRelay) claim(ctx context.Context) ([]*OutboxMessage, error) {
	rows, err := r.txManager.GetQuerier(ctx).Query(ctx, `
		UPDATE sys_outbox o
		SET next_retry_at = NOW() + make_interval(secs => $3)
		FROM (
			SELECT id FROM sys_outbox
			WHERE status = $1
			  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		) due
		WHERE o.id = due.id
		RETURNING o.id, o.aggregate_type, o.aggregate_id, o.event_type, o.payload, o.status,
		          o.retry_count, o.last_error, o.next_retry_at, o.created_at, o.published_at
	`, OutboxStatusPending, r.opts.BatchSize, r.opts.Lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*OutboxMessage
	for rows.Next() {
		var msg OutboxMessage
		if err := rows.Scan(
			&msg.ID, &msg.AggregateType, &msg.AggregateID, &msg.EventType,
			&msg.Payload, &msg.Status, &msg.RetryCount, &msg.LastError,
			&msg.NextRetryAt, &msg.CreatedAt, &msg.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox messages: %w", err)
	}

	// UPDATE ... RETURNING does not keep the subquery order.
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

func (r *OutboxRelay) processMessage(ctx context.Context, msg *OutboxMessage) error {
	q := r.txManager.GetQuerier(ctx)

	if err := r.handler.Handle(ctx, msg); err != nil {
		attempt := msg.RetryCount + 1
		status := OutboxStatusPending
		if attempt >= r.opts.MaxRetries {
			status = OutboxStatusFailed
		}
		nextRetry := time.Now().UTC().Add(time.Duration(attempt) * r.opts.Backoff)

		_, updateErr := q.Exec(ctx, `
			UPDATE sys_outbox
			SET retry_count = $1,
			    last_error = $2,
			    next_retry_at = $3,
			    status = $4
			WHERE id = $5
		`, attempt, err.Error(), nextRetry, status, msg.ID)
		if updateErr != nil {
			return fmt.Errorf("update failed message: %w", updateErr)
		}
		return err
	}

	_, err := q.Exec(ctx, `
		UPDATE sys_outbox
		SET status = $1, published_at = $2, last_error = NULL
		WHERE id = $3
	`, OutboxStatusPublished, time.Now().UTC(), msg.ID)
	return err
}

// MoveToDLQ moves messages that exhausted their retries to the dead letter table.
func (r *OutboxRelay) MoveToDLQ(ctx context.Context) (int64, error) {
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		WITH moved AS (
			DELETE FROM sys_outbox
			WHERE status = $1
			RETURNING id, aggregate_type, aggregate_id, event_type, payload, retry_count, last_error, created_at
		)
		INSERT INTO sys_outbox_dlq (id, aggregate_type, aggregate_id, event_type, payload, retry_count, failure_reason, created_at, failed_at)
		SELECT id, aggregate_type, aggregate_id, event_type, payload, retry_count, last_error, created_at, NOW() FROM moved
	`, OutboxStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("move to DLQ: %w", err)
	}
	return result.RowsAffected(), nil
}

// CleanupPublished deletes published messages older than retention.
func (r *OutboxRelay) CleanupPublished(ctx context.Context, retention time.Duration) (int64, error) {
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_outbox WHERE status = $1 AND published_at < $2
	`, OutboxStatusPublished, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("cleanup outbox: %w", err)
	}
	return result.RowsAffected(), nil
}
