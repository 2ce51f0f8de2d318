// Package reports provides inventory analytics: low stock, expiry, movement speed,
// food cost and usage anomalies.
package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"restopos/internal/core/id"
	"restopos/internal/core/types"
)

// --- Low stock ---

// LowStockRow is an item at or below its par level.
type LowStockRow struct {
	ItemID       id.ID          `db:"item_id" json:"itemId"`
	SKU          string         `db:"sku" json:"sku"`
	Name         string         `db:"name" json:"name"`
	Unit         string         `db:"unit" json:"unit"`
	CurrentStock types.Quantity `db:"current_stock" json:"currentStock"`
	ParLevel     types.Quantity `db:"par_level" json:"parLevel"`
	ReorderPoint types.Quantity `db:"reorder_point" json:"reorderPoint"`
	// Deficit is parLevel - currentStock.
	Deficit types.Quantity `db:"-" json:"deficit"`
}

// --- Expiry ---

// ExpiryCandidate is an expiry-tracked item with a known restock date.
type ExpiryCandidate struct {
	ItemID          id.ID          `db:"item_id" json:"itemId"`
	SKU             string         `db:"sku" json:"sku"`
	Name            string         `db:"name" json:"name"`
	CurrentStock    types.Quantity `db:"current_stock" json:"currentStock"`
	LastRestockDate time.Time      `db:"last_restock_date" json:"lastRestockDate"`
	ShelfLifeDays   int            `db:"shelf_life_days" json:"shelfLifeDays"`
}

// ExpiringRow is an item whose shelf life ends within the horizon.
type ExpiringRow struct {
	ExpiryCandidate
	ExpiresAt time.Time `json:"expiresAt"`
	// DaysLeft is negative for items already expired.
	DaysLeft int `json:"daysLeft"`
}

// --- Movement speed ---

// FastMovingRow is an item ranked by consumed quantity.
type FastMovingRow struct {
	ItemID    id.ID          `db:"item_id" json:"itemId"`
	SKU       string         `db:"sku" json:"sku"`
	Name      string         `db:"name" json:"name"`
	Unit      string         `db:"unit" json:"unit"`
	Consumed  types.Quantity `db:"consumed" json:"consumed"`
	Movements int            `db:"movements" json:"movements"`
}

// --- Food cost ---

// RecipeCost is the raw data for the food cost report.
type RecipeCost struct {
	RecipeID      id.ID        `db:"recipe_id" json:"recipeId"`
	Code          string       `db:"code" json:"code"`
	Name          string       `db:"name" json:"name"`
	MenuItemName  *string      `db:"menu_item_name" json:"menuItemName,omitempty"`
	MenuItemPrice *types.Money `db:"menu_item_price" json:"menuItemPrice,omitempty"`
	EstimatedCost types.Money  `db:"estimated_cost" json:"estimatedCost"`
}

// FoodCostRow adds the cost share of the menu price.
type FoodCostRow struct {
	RecipeCost
	// FoodCostPercent is nil when the menu item has no positive price.
	FoodCostPercent *decimal.Decimal `json:"foodCostPercent"`
	Margin          *types.Money     `json:"margin,omitempty"`
}

// --- Anomalies ---

// DailyUsage is one item's consumption on one day.
type DailyUsage struct {
	ItemID   id.ID          `db:"item_id"`
	SKU      string         `db:"sku"`
	Name     string         `db:"name"`
	Day      time.Time      `db:"day"`
	Consumed types.Quantity `db:"consumed"`
}

// AnomalyRow flags an item whose usage today is well above its recent average.
type AnomalyRow struct {
	ItemID       id.ID           `json:"itemId"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	TodayUsage   types.Quantity  `json:"todayUsage"`
	DailyAverage types.Quantity  `json:"dailyAverage"`
	Ratio        decimal.Decimal `json:"ratio"`
}

// --- Summary ---

// Summary is the dashboard headline.
type Summary struct {
	Items              int64       `db:"items" json:"items"`
	LowStockItems      int64       `db:"low_stock_items" json:"lowStockItems"`
	Warehouses         int64       `db:"warehouses" json:"warehouses"`
	Recipes            int64       `db:"recipes" json:"recipes"`
	Suppliers          int64       `db:"suppliers" json:"suppliers"`
	StockValue         types.Money `db:"stock_value" json:"stockValue"`
	OutstandingBalance types.Money `db:"outstanding_balance" json:"outstandingBalance"`
	GeneratedAt        time.Time   `db:"-" json:"generatedAt"`
}
