// Package item provides the inventory item catalog.
package item

import (
	"strings"
	"time"

	"restopos/internal/core/apperror"
	"restopos/internal/core/entity"
	"restopos/internal/core/id"
	"restopos/internal/core/types"
)

// TrackingMethod is declarative; consumption order does not depend on it.
type TrackingMethod string

const (
	TrackingFIFO    TrackingMethod = "fifo"
	TrackingLIFO    TrackingMethod = "lifo"
	TrackingFEFO    TrackingMethod = "fefo"
	TrackingAverage TrackingMethod = "average"
)

// DefaultUnit is applied when an item is created without a unit of measure.
const DefaultUnit = "pcs"

// Item is a stocked ingredient or good. Catalog.Code holds the SKU.
type Item struct {
	entity.Catalog

	Unit string `db:"unit" json:"unit"`

	Category *string `db:"category" json:"category,omitempty"`

	// ParLevel is the reorder threshold used by low-stock alerts.
	ParLevel     types.Quantity `db:"par_level" json:"parLevel"`
	ReorderPoint types.Quantity `db:"reorder_point" json:"reorderPoint"`
	SafetyStock  types.Quantity `db:"safety_stock" json:"safetyStock"`

	// Cost is the weighted-average unit cost.
	Cost types.Money `db:"cost" json:"cost"`

	DefaultWarehouseID *id.ID `db:"default_warehouse_id" json:"defaultWarehouseId,omitempty"`

	TrackingMethod TrackingMethod `db:"tracking_method" json:"trackingMethod"`

	TrackExpiry     bool       `db:"track_expiry" json:"trackExpiry"`
	ShelfLifeDays   int        `db:"shelf_life_days" json:"shelfLifeDays"`
	LastRestockDate *time.Time `db:"last_restock_date" json:"lastRestockDate,omitempty"`

	AlertEnabled bool `db:"alert_enabled" json:"alertEnabled"`

	// CurrentStock caches the sum of stock rows. Never used as input to a write.
	CurrentStock types.Quantity `db:"current_stock" json:"currentStock"`
}

// NewItem creates an active item with alerts enabled.
func NewItem(sku, name, unit string) *Item {
	it := &Item{
		Catalog:        entity.NewCatalog(sku, name),
		Unit:           strings.TrimSpace(unit),
		Cost:           types.Zero(),
		TrackingMethod: TrackingFIFO,
		AlertEnabled:   true,
	}
	it.Code = NormalizeSKU(it.Code)
	if it.Unit == "" {
		it.Unit = DefaultUnit
	}
	return it
}

// SKU returns the item's stock keeping unit.
func (it *Item) SKU() string { return it.Code }

func (it *Item) Validate() error {
	if strings.TrimSpace(it.Code) == "" {
		return apperror.NewValidation("sku is required").WithDetail("field", "sku")
	}
	if err := it.Catalog.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(it.Unit) == "" {
		return apperror.NewValidation("unit is required").WithDetail("field", "unit")
	}
	if it.ParLevel.IsNegative() || it.ReorderPoint.IsNegative() || it.SafetyStock.IsNegative() {
		return apperror.NewValidation("stock thresholds must not be negative").WithDetail("field", "parLevel")
	}
	if it.Cost.IsNegative() {
		return apperror.NewValidation("cost must not be negative").WithDetail("field", "cost")
	}
	if !IsValidTrackingMethod(it.TrackingMethod) {
		return apperror.NewValidation("invalid tracking method").
			WithDetail("field", "trackingMethod").
			WithDetail("value", string(it.TrackingMethod))
	}
	if it.ShelfLifeDays < 0 {
		return apperror.NewValidation("shelf life must not be negative").WithDetail("field", "shelfLifeDays")
	}
	if it.TrackExpiry && it.ShelfLifeDays == 0 {
		return apperror.NewValidation("shelf life is required when expiry tracking is enabled").
			WithDetail("field", "shelfLifeDays")
	}
	return nil
}

// ExpiresAt returns the expiry date of the last restock, if tracked.
func (it *Item) ExpiresAt() (time.Time, bool) {
	if !it.TrackExpiry || it.LastRestockDate == nil || it.ShelfLifeDays <= 0 {
		return time.Time{}, false
	}
	return it.LastRestockDate.AddDate(0, 0, it.ShelfLifeDays), true
}

// IsLowStock reports whether the cached total is at or below the par level.
func (it *Item) IsLowStock() bool {
	return it.AlertEnabled && it.ParLevel.IsPositive() && it.CurrentStock <= it.ParLevel
}

func IsValidTrackingMethod(m TrackingMethod) bool {
	switch m {
	case TrackingFIFO, TrackingLIFO, TrackingFEFO, TrackingAverage:
		return true
	}
	return false
}

// NormalizeSKU upper-cases and trims a SKU.
func NormalizeSKU(sku string) string {
	return entity.NormalizeCode(sku)
}
