package warehouse

import (
	"context"

	"restopos/internal/core/id"
	"restopos/internal/core/types"
	"restopos/internal/domain"
)

// Repository defines warehouse persistence together with the default registry row.
type Repository interface {
	Create(ctx context.Context, w *Warehouse) error

	// Update modifies the row with optimistic locking on Version.
	Update(ctx context.Context, w *Warehouse) error

	GetByID(ctx context.Context, warehouseID id.ID) (*Warehouse, error)

	// GetByCode returns the warehouse regardless of its active flag.
	GetByCode(ctx context.Context, code string) (*Warehouse, error)

	ExistsByCode(ctx context.Context, code string) (bool, error)

	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Warehouse], error)

	// LockRegistry creates the singleton registry row if needed and locks it until the
	// surrounding transaction ends. Every default change runs behind this lock.
	LockRegistry(ctx context.Context) error

	// GetDefaultID returns the registry pointer, nil when unset.
	GetDefaultID(ctx context.Context) (*id.ID, error)

	// SetDefaultID points the registry at warehouseID.
	SetDefaultID(ctx context.Context, warehouseID id.ID) error

	// StockTotal sums stock quantities held by the warehouse across all items.
	StockTotal(ctx context.Context, warehouseID id.ID) (types.Quantity, error)

	// DeleteEmptyStock removes the warehouse's stock rows. Callers check StockTotal first.
	DeleteEmptyStock(ctx context.Context, warehouseID id.ID) (int64, error)
}

// DefaultCache keeps the default warehouse id close to the API processes.
// Implementations must be safe to call with a cold or unavailable backend.
type DefaultCache interface {
	GetDefault(ctx context.Context) (id.ID, bool)
	SetDefault(ctx context.Context, warehouseID id.ID)
	InvalidateDefault(ctx context.Context)
}
