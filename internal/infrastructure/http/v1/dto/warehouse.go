package dto

import (
	"restopos/internal/domain/catalogs/warehouse"
)

// --- Request DTOs ---

// CreateWarehouseRequest is the request body for creating a warehouse.
type CreateWarehouseRequest struct {
	Code        string         `json:"code" binding:"required"`
	Name        string         `json:"name" binding:"required"`
	Type        warehouse.Type `json:"type"`
	Address     *string        `json:"address"`
	Description *string        `json:"description"`
	IsDefault   bool           `json:"isDefault"`
}

// ToCommand converts DTO to a service command.
func (r *CreateWarehouseRequest) ToCommand() warehouse.CreateCommand {
	return warehouse.CreateCommand{
		Code:        r.Code,
		Name:        r.Name,
		Type:        r.Type,
		Address:     r.Address,
		Description: r.Description,
		IsDefault:   r.IsDefault,
	}
}

// UpdateWarehouseRequest changes the fields that are present.
type UpdateWarehouseRequest struct {
	Version     int             `json:"version" binding:"required,min=1"`
	Name        *string         `json:"name"`
	Type        *warehouse.Type `json:"type"`
	Address     *string         `json:"address"`
	Description *string         `json:"description"`
	IsDefault   *bool           `json:"isDefault"`
}

func (r *UpdateWarehouseRequest) ToCommand() warehouse.UpdateCommand {
	return warehouse.UpdateCommand{
		Version:     r.Version,
		Name:        r.Name,
		Type:        r.Type,
		Address:     r.Address,
		Description: r.Description,
		IsDefault:   r.IsDefault,
	}
}
