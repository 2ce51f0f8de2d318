// Package audit defines the action log: one summary entry per business operation.
package audit

import (
	"context"
	"time"

	"restopos/internal/core/id"
	"restopos/internal/domain"
)

// Action identifies the audited operation.
type Action string

const (
	ActionStockAdjust      Action = "stock.adjust"
	ActionStockTransfer    Action = "stock.transfer"
	ActionStockCount       Action = "stock.count"
	ActionStockImport      Action = "stock.import"
	ActionRecipeUsage      Action = "recipe.usage"
	ActionSupplierPurchase Action = "supplier.purchase"
	ActionSupplierReturn   Action = "supplier.return"
	ActionSupplierPayment  Action = "supplier.payment"
)

// Entry is a single action log record.
type Entry struct {
	ID         id.ID          `json:"id"`
	Action     Action         `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	ActorID    string         `json:"actorId"`
	Summary    string         `json:"summary"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Filter narrows action log reads.
type Filter struct {
	Action     Action
	EntityType string
	EntityID   string
	From       *time.Time
	To         *time.Time
	domain.Page
}

// Recorder appends action log entries, in the caller's transaction when there is one.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Reader reads the action log newest first.
type Reader interface {
	List(ctx context.Context, filter Filter) (domain.ListResult[*Entry], error)
}

// NopRecorder discards entries.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Entry) error { return nil }
