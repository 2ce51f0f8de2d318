// Package warehouse provides the warehouse catalog and the default-warehouse registry.
package warehouse

import (
	"restopos/internal/core/apperror"
	"restopos/internal/core/entity"
)

// Type defines the role of a warehouse in the restaurant.
type Type string

const (
	TypeMain     Type = "main"
	TypeKitchen  Type = "kitchen"
	TypeBar      Type = "bar"
	TypeDelivery Type = "delivery"
	TypeStorage  Type = "storage"
	TypeCustom   Type = "custom"
)

// MainCode is the code of the warehouse created when no default exists.
const (
	MainCode = "MAIN"
	MainName = "Main warehouse"
)

// Warehouse represents a storage location for inventory.
type Warehouse struct {
	entity.Catalog

	Type Type `db:"type" json:"type"`

	Address *string `db:"address" json:"address,omitempty"`

	Description *string `db:"description" json:"description,omitempty"`

	// IsDefault is derived from the registry pointer on read and never stored on the row.
	IsDefault bool `db:"-" json:"isDefault"`
}

// NewWarehouse creates a new active Warehouse.
func NewWarehouse(code, name string, whType Type) *Warehouse {
	if whType == "" {
		whType = TypeStorage
	}
	w := &Warehouse{
		Catalog: entity.NewCatalog(code, name),
		Type:    whType,
	}
	w.Code = entity.NormalizeCode(w.Code)
	return w
}

// NewMainWarehouse builds the lazily created default warehouse.
func NewMainWarehouse() *Warehouse {
	return NewWarehouse(MainCode, MainName, TypeMain)
}

func (w *Warehouse) Validate() error {
	if err := w.Catalog.Validate(); err != nil {
		return err
	}

	if !IsValidType(w.Type) {
		return apperror.NewValidation("invalid warehouse type").
			WithDetail("field", "type").
			WithDetail("value", string(w.Type))
	}

	return nil
}

func IsValidType(t Type) bool {
	switch t {
	case TypeMain, TypeKitchen, TypeBar, TypeDelivery, TypeStorage, TypeCustom:
		return true
	}
	return false
}
