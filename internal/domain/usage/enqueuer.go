package usage

import (
	"context"
	"time"

	appctx "restopos/internal/core/context"
	"restopos/internal/core/events"
	"restopos/internal/core/id"
)

// Enqueuer is the order-creation boundary. It records the usage intent in the
// caller's transaction; the worker applies it later with retries.
type Enqueuer struct {
	publisher events.Publisher
}

func NewEnqueuer(publisher events.Publisher) *Enqueuer {
	return &Enqueuer{publisher: publisher}
}

// Enqueue writes an order.created outbox event.
func (e *Enqueuer) Enqueue(ctx context.Context, order OrderCreated) error {
	if err := order.Validate(); err != nil {
		return err
	}
	if order.ActorID == "" {
		order.ActorID = appctx.ActorID(ctx)
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	aggregateID, err := id.Parse(order.OrderID)
	if err != nil {
		aggregateID = id.Nil()
	}

	return e.publisher.Publish(ctx, events.Event{
		AggregateType: events.AggregateOrder,
		AggregateID:   aggregateID,
		Type:          events.TypeOrderCreated,
		Payload:       order,
	})
}
