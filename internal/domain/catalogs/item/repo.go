package item

import (
	"context"
	"time"

	"restopos/internal/core/id"
	"restopos/internal/core/types"
	"restopos/internal/domain"
)

// Filter narrows item lists.
type Filter struct {
	domain.ListFilter

	Category string
}

// Repository defines the interface for Item persistence.
type Repository interface {
	Create(ctx context.Context, it *Item) error

	// Update modifies catalog fields with optimistic locking.
	// It never writes current_stock; that column belongs to the stock register.
	Update(ctx context.Context, it *Item) error

	GetByID(ctx context.Context, itemID id.ID) (*Item, error)

	// GetForUpdate retrieves the item with a row lock.
	GetForUpdate(ctx context.Context, itemID id.ID) (*Item, error)

	// GetByCode retrieves an item by SKU regardless of its active flag.
	GetByCode(ctx context.Context, sku string) (*Item, error)

	ExistsByCode(ctx context.Context, sku string) (bool, error)

	// GetMany returns the items found among ids, keyed by id.
	GetMany(ctx context.Context, ids []id.ID) (map[id.ID]*Item, error)

	List(ctx context.Context, filter Filter) (domain.ListResult[*Item], error)

	// StockTotal sums the item's stock rows. Unlike CurrentStock it is always exact.
	StockTotal(ctx context.Context, itemID id.ID) (types.Quantity, error)

	// UpdateCost stores a new weighted-average cost and the restock date.
	UpdateCost(ctx context.Context, itemID id.ID, cost types.Money, restockedAt time.Time) error
}
