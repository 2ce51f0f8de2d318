package item

import (
	"context"
	"strings"
	"time"

	"restopos/internal/core/apperror"
	appctx "restopos/internal/core/context"
	"restopos/internal/core/id"
	"restopos/internal/core/tx"
	"restopos/internal/core/types"
	"restopos/internal/domain"
	"restopos/internal/domain/catalogs/warehouse"
	"restopos/pkg/logger"
)

// WarehouseResolver validates warehouse references held by items.
type WarehouseResolver interface {
	Resolve(ctx context.Context, warehouseID *id.ID) (*warehouse.Warehouse, error)
}

// CreateCommand carries the fields of a new item.
type CreateCommand struct {
	SKU                string
	Name               string
	Unit               string
	Category           *string
	ParLevel           types.Quantity
	ReorderPoint       types.Quantity
	SafetyStock        types.Quantity
	Cost               types.Money
	DefaultWarehouseID *id.ID
	TrackingMethod     TrackingMethod
	TrackExpiry        bool
	ShelfLifeDays      int
	AlertEnabled       *bool
}

// UpdateCommand carries optional changes; nil fields are left untouched.
// Cost and stock are maintained by the ledgers and cannot be edited here.
type UpdateCommand struct {
	Version            int
	SKU                *string
	Name               *string
	Unit               *string
	Category           *string
	ParLevel           *types.Quantity
	ReorderPoint       *types.Quantity
	SafetyStock        *types.Quantity
	DefaultWarehouseID *id.ID
	ClearWarehouse     bool
	TrackingMethod     *TrackingMethod
	TrackExpiry        *bool
	ShelfLifeDays      *int
	AlertEnabled       *bool
}

// Service provides business logic for the item catalog.
type Service struct {
	repo       Repository
	txManager  tx.Manager
	warehouses WarehouseResolver
}

// NewService creates a new Item service.
func NewService(repo Repository, txManager tx.Manager, warehouses WarehouseResolver) *Service {
	return &Service{
		repo:       repo,
		txManager:  txManager,
		warehouses: warehouses,
	}
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Item, error) {
	it := NewItem(cmd.SKU, cmd.Name, cmd.Unit)
	it.Category = trimmed(cmd.Category)
	it.ParLevel = cmd.ParLevel
	it.ReorderPoint = cmd.ReorderPoint
	it.SafetyStock = cmd.SafetyStock
	if !cmd.Cost.IsZero() {
		it.Cost = cmd.Cost
	}
	it.DefaultWarehouseID = cmd.DefaultWarehouseID
	if cmd.TrackingMethod != "" {
		it.TrackingMethod = cmd.TrackingMethod
	}
	it.TrackExpiry = cmd.TrackExpiry
	it.ShelfLifeDays = cmd.ShelfLifeDays
	if cmd.AlertEnabled != nil {
		it.AlertEnabled = *cmd.AlertEnabled
	}
	it.CreatedBy = appctx.ActorID(ctx)

	if err := it.Validate(); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.checkWarehouse(ctx, it.DefaultWarehouseID); err != nil {
			return err
		}

		exists, err := s.repo.ExistsByCode(ctx, it.Code)
		if err != nil {
			return err
		}
		if exists {
			return apperror.NewDuplicate("item", "sku", it.Code)
		}

		return s.repo.Create(ctx, it)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "item created", "item_id", it.ID, "sku", it.Code)
	return it, nil
}

func (s *Service) Update(ctx context.Context, itemID id.ID, cmd UpdateCommand) (*Item, error) {
	var result *Item

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		it, err := s.repo.GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		if cmd.Version > 0 && cmd.Version != it.Version {
			return apperror.NewConcurrentModification("item", itemID.String())
		}

		if cmd.SKU != nil {
			sku := NormalizeSKU(*cmd.SKU)
			if sku != it.Code {
				existing, err := s.repo.GetByCode(ctx, sku)
				if err != nil && !apperror.IsNotFound(err) {
					return err
				}
				if existing != nil && existing.ID != it.ID {
					return apperror.NewDuplicate("item", "sku", sku)
				}
				it.Code = sku
			}
		}
		if cmd.Name != nil {
			it.Name = strings.TrimSpace(*cmd.Name)
		}
		if cmd.Unit != nil {
			it.Unit = strings.TrimSpace(*cmd.Unit)
		}
		if cmd.Category != nil {
			it.Category = trimmed(cmd.Category)
		}
		if cmd.ParLevel != nil {
			it.ParLevel = *cmd.ParLevel
		}
		if cmd.ReorderPoint != nil {
			it.ReorderPoint = *cmd.ReorderPoint
		}
		if cmd.SafetyStock != nil {
			it.SafetyStock = *cmd.SafetyStock
		}
		if cmd.ClearWarehouse {
			it.DefaultWarehouseID = nil
		} else if cmd.DefaultWarehouseID != nil {
			if err := s.checkWarehouse(ctx, cmd.DefaultWarehouseID); err != nil {
				return err
			}
			it.DefaultWarehouseID = cmd.DefaultWarehouseID
		}
		if cmd.TrackingMethod != nil {
			it.TrackingMethod = *cmd.TrackingMethod
		}
		if cmd.TrackExpiry != nil {
			it.TrackExpiry = *cmd.TrackExpiry
		}
		if cmd.ShelfLifeDays != nil {
			it.ShelfLifeDays = *cmd.ShelfLifeDays
		}
		if cmd.AlertEnabled != nil {
			it.AlertEnabled = *cmd.AlertEnabled
		}

		if err := it.Validate(); err != nil {
			return err
		}

		it.Touch()
		if err := s.repo.Update(ctx, it); err != nil {
			return err
		}
		result = it
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Archive deactivates an item. Items still holding stock are refused.
func (s *Service) Archive(ctx context.Context, itemID id.ID) (*Item, error) {
	var result *Item

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		it, err := s.repo.GetForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if !it.IsActive {
			result = it
			return nil
		}

		total, err := s.repo.StockTotal(ctx, it.ID)
		if err != nil {
			return err
		}
		if !total.IsZero() {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "item still holds stock").
				WithDetail("item_id", it.ID.String()).
				WithDetail("quantity", total.String())
		}

		it.Archive()
		if err := s.repo.Update(ctx, it); err != nil {
			return err
		}
		result = it
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "item archived", "item_id", itemID)
	return result, nil
}

func (s *Service) Get(ctx context.Context, itemID id.ID) (*Item, error) {
	return s.repo.GetByID(ctx, itemID)
}

// GetActive returns the item or NotFound when it is archived.
func (s *Service) GetActive(ctx context.Context, itemID id.ID) (*Item, error) {
	it, err := s.repo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !it.IsActive {
		return nil, apperror.NewNotFound("item", itemID.String()).WithDetail("reason", "inactive")
	}
	return it, nil
}

// GetActiveForUpdate returns the active item under a row lock. Call it inside a transaction.
func (s *Service) GetActiveForUpdate(ctx context.Context, itemID id.ID) (*Item, error) {
	it, err := s.repo.GetForUpdate(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !it.IsActive {
		return nil, apperror.NewNotFound("item", itemID.String()).WithDetail("reason", "inactive")
	}
	return it, nil
}

// UpdateCost stores a purchase-driven cost. Only the supplier ledger calls it.
func (s *Service) UpdateCost(ctx context.Context, itemID id.ID, cost types.Money, restockedAt time.Time) error {
	if cost.IsNegative() {
		return apperror.NewInvalidInput("cost", "cost must not be negative")
	}
	return s.repo.UpdateCost(ctx, itemID, cost.Round(types.CostPrecision), restockedAt.UTC())
}

func (s *Service) GetBySKU(ctx context.Context, sku string) (*Item, error) {
	return s.repo.GetByCode(ctx, NormalizeSKU(sku))
}

func (s *Service) List(ctx context.Context, filter Filter) (domain.ListResult[*Item], error) {
	filter.ListFilter = filter.ListFilter.Normalize()
	return s.repo.List(ctx, filter)
}

func (s *Service) checkWarehouse(ctx context.Context, warehouseID *id.ID) error {
	if warehouseID == nil || id.IsNil(*warehouseID) || s.warehouses == nil {
		return nil
	}
	_, err := s.warehouses.Resolve(ctx, warehouseID)
	return err
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
