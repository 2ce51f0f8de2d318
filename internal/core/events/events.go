// Package events defines integration events written to the outbox and pushed to live clients.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"restopos/internal/core/id"
)

// Event types.
const (
	TypeOrderCreated = "order.created"
	TypeStockChanged = "inventory.stock_changed"
	TypeLowStock     = "inventory.low_stock"
)

// Aggregate types.
const (
	AggregateOrder = "order"
	AggregateItem  = "item"
)

// Event is a domain event to be published via the outbox.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	Type          string
	Payload       any
}

// Publisher writes events inside the caller's transaction.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	PublishBatch(ctx context.Context, events []Event) error
}

// Notifier pushes already committed events to live subscribers. Best-effort.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// StockChanged is the payload of TypeStockChanged.
type StockChanged struct {
	MovementID   id.ID     `json:"movementId"`
	ItemID       id.ID     `json:"itemId"`
	WarehouseID  id.ID     `json:"warehouseId"`
	MovementType string    `json:"movementType"`
	Delta        string    `json:"delta"`
	BalanceAfter string    `json:"balanceAfter"`
	ItemTotal    string    `json:"itemTotal"`
	Reference    string    `json:"reference,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// LowStock is the payload of TypeLowStock.
type LowStock struct {
	ItemID       id.ID  `json:"itemId"`
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	CurrentStock string `json:"currentStock"`
	ParLevel     string `json:"parLevel"`
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error        { return nil }
func (NopPublisher) PublishBatch(context.Context, []Event) error { return nil }

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) {}

// Notifiers fans a notification out to several notifiers.
type Notifiers []Notifier

func (n Notifiers) Notify(ctx context.Context, event Event) {
	for _, notifier := range n {
		if notifier != nil {
			notifier.Notify(ctx, event)
		}
	}
}

// Envelope is the wire form of a notification pushed to live clients.
type Envelope struct {
	Type          string          `json:"type"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   id.ID           `json:"aggregateId"`
	Payload       json.RawMessage `json:"data"`
	At            time.Time       `json:"timestamp"`
}

// Encode renders the event as an Envelope.
func Encode(event Event, at time.Time) ([]byte, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event.Type, err)
	}
	return json.Marshal(Envelope{
		Type:          event.Type,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
		At:            at.UTC(),
	})
}
