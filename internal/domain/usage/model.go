// Package usage deducts recipe ingredients from stock when orders are created.
package usage

import (
	"time"

	"github.com/shopspring/decimal"

	"restopos/internal/core/apperror"
	"restopos/internal/core/id"
	"restopos/internal/core/types"
)

// OrderLine is one line of a persisted order.
type OrderLine struct {
	MenuItemID   id.ID           `json:"menuItemId"`
	MenuItemName string          `json:"menuItemName,omitempty"`
	Qty          decimal.Decimal `json:"qty"`
	PortionKey   string          `json:"portionKey,omitempty"`
}

// OrderCreated is the intent recorded when an order is persisted.
type OrderCreated struct {
	OrderID   string      `json:"orderId"`
	ActorID   string      `json:"actorId,omitempty"`
	Lines     []OrderLine `json:"lines"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Validate checks the order shape before it is queued.
func (o OrderCreated) Validate() error {
	if o.OrderID == "" {
		return apperror.NewInvalidInput("orderId", "order id is required")
	}
	for i, l := range o.Lines {
		if id.IsNil(l.MenuItemID) {
			return apperror.NewInvalidInput("lines", "menu item is required").WithDetail("line", i)
		}
		if !l.Qty.IsPositive() {
			return apperror.NewInvalidInput("lines", "quantity must be positive").WithDetail("line", i)
		}
	}
	return nil
}

// Source records which order line drove a deduction.
type Source struct {
	MenuItemID id.ID  `json:"menuItemId"`
	MenuItem   string `json:"menuItem"`
	Portion    string `json:"portion"`
	Qty        string `json:"qty"`
}

// BucketResult is the outcome for one (item, warehouse) bucket.
type BucketResult struct {
	ItemID      id.ID          `json:"itemId"`
	WarehouseID id.ID          `json:"warehouseId"`
	Requested   types.Quantity `json:"requested"`
	Deducted    types.Quantity `json:"deducted"`
	Shortage    types.Quantity `json:"shortage"`
	MovementID  *id.ID         `json:"movementId,omitempty"`
	// Skipped explains why the bucket was not applied.
	Skipped string `json:"skipped,omitempty"`
}

// Skip reasons.
const (
	SkipAlreadyApplied = "already_applied"
	SkipItemInactive   = "item_inactive"
	SkipNoWarehouse    = "warehouse_unresolved"
	SkipFailed         = "failed"
)

// Result summarizes a pipeline run. It is informational; the pipeline never fails
// the order.
type Result struct {
	OrderID        string         `json:"orderId"`
	Buckets        []BucketResult `json:"buckets"`
	LinesSkipped   int            `json:"linesSkipped"`
	RecipesUsed    []id.ID        `json:"recipesUsed"`
	ShortageBucket int            `json:"shortageBuckets"`

	// Retry is set when a transient failure left work undone. Re-running the same
	// order is safe: applied buckets are detected and skipped.
	Retry bool `json:"retry"`
}

// Applied counts buckets that produced a movement.
func (r *Result) Applied() int {
	n := 0
	for _, b := range r.Buckets {
		if b.MovementID != nil {
			n++
		}
	}
	return n
}
