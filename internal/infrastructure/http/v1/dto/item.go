package dto

import (
	"restopos/internal/core/id"
	"restopos/internal/core/types"
	"restopos/internal/domain/catalogs/item"
)

// CreateItemRequest is the request body for creating an inventory item.
type CreateItemRequest struct {
	SKU                string              `json:"sku" binding:"required"`
	Name               string              `json:"name" binding:"required"`
	Unit               string              `json:"unit"`
	Category           *string             `json:"category"`
	ParLevel           types.Quantity      `json:"parLevel"`
	ReorderPoint       types.Quantity      `json:"reorderPoint"`
	SafetyStock        types.Quantity      `json:"safetyStock"`
	Cost               types.Money         `json:"cost"`
	DefaultWarehouseID *id.ID              `json:"defaultWarehouseId"`
	TrackingMethod     item.TrackingMethod `json:"trackingMethod"`
	TrackExpiry        bool                `json:"trackExpiry"`
	ShelfLifeDays      int                 `json:"shelfLifeDays"`
	AlertEnabled       *bool               `json:"alertEnabled"`
}

func (r *CreateItemRequest) ToCommand() item.CreateCommand {
	return item.CreateCommand{
		SKU:                r.SKU,
		Name:               r.Name,
		Unit:               r.Unit,
		Category:           r.Category,
		ParLevel:           r.ParLevel,
		ReorderPoint:       r.ReorderPoint,
		SafetyStock:        r.SafetyStock,
		Cost:               r.Cost,
		DefaultWarehouseID: r.DefaultWarehouseID,
		TrackingMethod:     r.TrackingMethod,
		TrackExpiry:        r.TrackExpiry,
		ShelfLifeDays:      r.ShelfLifeDays,
		AlertEnabled:       r.AlertEnabled,
	}
}

// UpdateItemRequest changes the fields that are present. Cost is owned by
// purchases and cannot be set here.
type UpdateItemRequest struct {
	Version            int                  `json:"version" binding:"required,min=1"`
	SKU                *string              `json:"sku"`
	Name               *string              `json:"name"`
	Unit               *string              `json:"unit"`
	Category           *string              `json:"category"`
	ParLevel           *types.Quantity      `json:"parLevel"`
	ReorderPoint       *types.Quantity      `json:"reorderPoint"`
	SafetyStock        *types.Quantity      `json:"safetyStock"`
	DefaultWarehouseID *id.ID               `json:"defaultWarehouseId"`
	ClearWarehouse     bool                 `json:"clearDefaultWarehouse"`
	TrackingMethod     *item.TrackingMethod `json:"trackingMethod"`
	TrackExpiry        *bool                `json:"trackExpiry"`
	ShelfLifeDays      *int                 `json:"shelfLifeDays"`
	AlertEnabled       *bool                `json:"alertEnabled"`
}

func (r *UpdateItemRequest) ToCommand() item.UpdateCommand {
	return item.UpdateCommand{
		Version:            r.Version,
		SKU:                r.SKU,
		Name:               r.Name,
		Unit:               r.Unit,
		Category:           r.Category,
		ParLevel:           r.ParLevel,
		ReorderPoint:       r.ReorderPoint,
		SafetyStock:        r.SafetyStock,
		DefaultWarehouseID: r.DefaultWarehouseID,
		ClearWarehouse:     r.ClearWarehouse,
		TrackingMethod:     r.TrackingMethod,
		TrackExpiry:        r.TrackExpiry,
		ShelfLifeDays:      r.ShelfLifeDays,
		AlertEnabled:       r.AlertEnabled,
	}
}
