// Package stock provides the per-warehouse stock ledger and its movement log.
package stock

import (
	"context"
	"time"

	"restopos/internal/core/id"
	"restopos/internal/core/types"
	"restopos/internal/domain"
)

// Repository defines operations for the stock ledger.
// Every quantity change is a single conditional statement; callers never write a
// quantity they have read.
type Repository interface {
	// GetOrCreateStock inserts the row if missing. Seed values are applied on insert only.
	GetOrCreateStock(ctx context.Context, itemID, warehouseID id.ID, seed Seed) (*Stock, error)

	GetStock(ctx context.Context, itemID, warehouseID id.ID) (*Stock, error)

	// Increment adds delta when the result stays non-negative.
	// applied is false, and nothing is written, otherwise.
	Increment(ctx context.Context, itemID, warehouseID id.ID, delta types.Quantity) (after types.Quantity, applied bool, err error)

	// DecrementClamped subtracts up to qty, stopping at zero.
	DecrementClamped(ctx context.Context, itemID, warehouseID id.ID, qty types.Quantity) (before, after types.Quantity, err error)

	// SetQuantity overwrites the quantity with a counted value and stamps the count date.
	SetQuantity(ctx context.Context, itemID, warehouseID id.ID, counted types.Quantity, countedAt time.Time) (before types.Quantity, err error)

	CreateMovement(ctx context.Context, m *Movement) error

	// HasMovement reports whether a movement of the type and reference exists for the bucket.
	HasMovement(ctx context.Context, movementType MovementType, reference string, itemID, warehouseID id.ID) (bool, error)

	ListMovements(ctx context.Context, filter MovementFilter) (domain.ListResult[*Movement], error)

	ListStock(ctx context.Context, filter StockFilter) (domain.ListResult[*StockLine], error)

	// RecalcItemTotals persists SUM(quantity) onto the item and returns it.
	RecalcItemTotals(ctx context.Context, itemID id.ID) (types.Quantity, error)
}

// MovementFilter for filtering movement history.
type MovementFilter struct {
	ItemID      *id.ID
	WarehouseID *id.ID
	SupplierID  *id.ID
	Types       []MovementType
	Reference   string
	From        *time.Time
	To          *time.Time
	domain.Page
}

// StockFilter for filtering stock listings.
type StockFilter struct {
	ItemID      *id.ID
	WarehouseID *id.ID
	Search      string
	ExcludeZero bool
	domain.Page
}
