package stock

import (
	"time"

	"restopos/internal/core/entity"
	"restopos/internal/core/id"
	"restopos/internal/core/types"
)

// MovementType classifies a stock movement.
type MovementType string

const (
	MovementIncoming        MovementType = "incoming"
	MovementUsage           MovementType = "usage"
	MovementAdjustment      MovementType = "adjustment"
	MovementWaste           MovementType = "waste"
	MovementTransferIn      MovementType = "transfer_in"
	MovementTransferOut     MovementType = "transfer_out"
	MovementReturn          MovementType = "return"
	MovementCountAdjustment MovementType = "count_adjustment"
)

func (t MovementType) IsValid() bool {
	switch t {
	case MovementIncoming, MovementUsage, MovementAdjustment, MovementWaste,
		MovementTransferIn, MovementTransferOut, MovementReturn, MovementCountAdjustment:
		return true
	}
	return false
}

// IsOutflow reports whether the type counts towards consumption analytics.
func (t MovementType) IsOutflow() bool {
	switch t {
	case MovementUsage, MovementWaste, MovementTransferOut, MovementReturn:
		return true
	}
	return false
}

// Policy decides what happens when a mutation would drive a stock row below zero.
type Policy int

const (
	// PolicyReject fails with INSUFFICIENT_STOCK and leaves the row unchanged.
	PolicyReject Policy = iota
	// PolicyClamp deducts what is available and records the shortage.
	PolicyClamp
	// PolicyAbsolute sets the row to a counted quantity.
	PolicyAbsolute
)

// Stock is the on-hand quantity of one item in one warehouse.
type Stock struct {
	ItemID      id.ID `db:"item_id" json:"itemId"`
	WarehouseID id.ID `db:"warehouse_id" json:"warehouseId"`

	// Quantity is never negative.
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	ParLevel     types.Quantity `db:"par_level" json:"parLevel"`
	ReorderPoint types.Quantity `db:"reorder_point" json:"reorderPoint"`
	SafetyStock  types.Quantity `db:"safety_stock" json:"safetyStock"`

	LastCountDate  *time.Time `db:"last_count_date" json:"lastCountDate,omitempty"`
	LastMovementAt *time.Time `db:"last_movement_at" json:"lastMovementAt,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Seed holds per-warehouse thresholds written only when a stock row is first created.
type Seed struct {
	ParLevel     types.Quantity
	ReorderPoint types.Quantity
	SafetyStock  types.Quantity
}

// StockLine is a stock row joined with item and warehouse names for listings.
type StockLine struct {
	Stock

	ItemName      string         `db:"item_name" json:"itemName"`
	SKU           string         `db:"sku" json:"sku"`
	Unit          string         `db:"unit" json:"unit"`
	ItemParLevel  types.Quantity `db:"item_par_level" json:"itemParLevel"`
	ItemCost      types.Money    `db:"item_cost" json:"itemCost"`
	WarehouseCode string         `db:"warehouse_code" json:"warehouseCode"`
}

// EffectiveParLevel prefers the warehouse override over the item's par level.
func (l *StockLine) EffectiveParLevel() types.Quantity {
	if l.ParLevel.IsPositive() {
		return l.ParLevel
	}
	return l.ItemParLevel
}

// Movement is an immutable record of one stock change.
type Movement struct {
	ID          id.ID        `db:"id" json:"id"`
	ItemID      id.ID        `db:"item_id" json:"itemId"`
	WarehouseID id.ID        `db:"warehouse_id" json:"warehouseId"`
	Type        MovementType `db:"type" json:"type"`

	// Delta is the signed change actually applied to the stock row.
	Delta types.Quantity `db:"delta" json:"delta"`
	// Quantity is |Delta|.
	Quantity types.Quantity `db:"quantity" json:"quantity"`
	// BalanceAfter is the stock row quantity right after this movement.
	BalanceAfter types.Quantity `db:"balance_after" json:"balanceAfter"`

	Unit string `db:"unit" json:"unit"`

	SourceWarehouseID *id.ID `db:"source_warehouse_id" json:"sourceWarehouseId,omitempty"`
	TargetWarehouseID *id.ID `db:"target_warehouse_id" json:"targetWarehouseId,omitempty"`

	UnitCost  types.Money `db:"unit_cost" json:"unitCost"`
	TotalCost types.Money `db:"total_cost" json:"totalCost"`

	Reason    string          `db:"reason" json:"reason,omitempty"`
	Reference string          `db:"reference" json:"reference,omitempty"`
	Metadata  entity.Metadata `db:"metadata" json:"metadata,omitempty"`

	SupplierID *id.ID `db:"supplier_id" json:"supplierId,omitempty"`

	CreatedBy string    `db:"created_by" json:"createdBy"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
