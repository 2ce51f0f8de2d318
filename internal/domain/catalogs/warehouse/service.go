package warehouse

import (
	"context"
	"fmt"
	"strings"

	"restopos/internal/core/apperror"
	appctx "restopos/internal/core/context"
	"restopos/internal/core/id"
	"restopos/internal/core/tx"
	"restopos/internal/domain"
	"restopos/pkg/logger"
)

// CreateCommand carries the fields of a new warehouse.
type CreateCommand struct {
	Code        string
	Name        string
	Type        Type
	Address     *string
	Description *string
	IsDefault   bool
}

// UpdateCommand carries optional changes; nil fields are left untouched.
type UpdateCommand struct {
	Version     int
	Name        *string
	Type        *Type
	Address     *string
	Description *string
	IsDefault   *bool
}

// Service owns the warehouse catalog and the single-default invariant.
type Service struct {
	repo      Repository
	txManager tx.Manager
	cache     DefaultCache
}

// NewService creates a new Warehouse service. cache may be nil.
func NewService(repo Repository, txManager tx.Manager, cache DefaultCache) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
		cache:     cache,
	}
}

// Resolve returns the warehouse to use for an inventory operation.
// With an explicit id the warehouse must exist and be active; without one the
// default warehouse is returned, creating MAIN when no active default exists.
func (s *Service) Resolve(ctx context.Context, warehouseID *id.ID) (*Warehouse, error) {
	if warehouseID == nil || id.IsNil(*warehouseID) {
		return s.Default(ctx)
	}

	w, err := s.repo.GetByID(ctx, *warehouseID)
	if err != nil {
		return nil, err
	}
	if !w.IsActive {
		return nil, apperror.NewNotFound("warehouse", warehouseID.String()).
			WithDetail("reason", "inactive")
	}

	defaultID, err := s.defaultID(ctx)
	if err != nil {
		return nil, err
	}
	w.IsDefault = defaultID != nil && *defaultID == w.ID
	return w, nil
}

// Default returns the current default warehouse, repairing the registry when needed.
func (s *Service) Default(ctx context.Context) (*Warehouse, error) {
	defaultID, err := s.defaultID(ctx)
	if err != nil {
		return nil, err
	}
	if defaultID != nil {
		w, err := s.repo.GetByID(ctx, *defaultID)
		if err != nil && !apperror.IsNotFound(err) {
			return nil, err
		}
		if err == nil && w.IsActive {
			w.IsDefault = true
			return w, nil
		}
	}
	s.invalidate(ctx)
	return s.EnsureDefault(ctx)
}

// EnsureDefault guarantees an active default warehouse exists and returns it.
func (s *Service) EnsureDefault(ctx context.Context) (*Warehouse, error) {
	var result *Warehouse

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.LockRegistry(ctx); err != nil {
			return err
		}

		defaultID, err := s.repo.GetDefaultID(ctx)
		if err != nil {
			return err
		}
		if defaultID != nil {
			w, err := s.repo.GetByID(ctx, *defaultID)
			if err != nil && !apperror.IsNotFound(err) {
				return err
			}
			if err == nil && w.IsActive {
				result = w
				return nil
			}
		}

		w, err := s.mainWarehouse(ctx)
		if err != nil {
			return err
		}
		if err := s.pointDefault(ctx, w.ID); err != nil {
			return fmt.Errorf("set default warehouse: %w", err)
		}

		logger.Info(ctx, "default warehouse established", "warehouse_id", w.ID, "code", w.Code)
		result = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.IsDefault = true
	s.remember(ctx, result.ID)
	return result, nil
}

// mainWarehouse returns the MAIN warehouse, reactivating or creating it.
func (s *Service) mainWarehouse(ctx context.Context) (*Warehouse, error) {
	w, err := s.repo.GetByCode(ctx, MainCode)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}

	if err == nil {
		if !w.IsActive {
			w.Activate()
			if err := s.repo.Update(ctx, w); err != nil {
				return nil, fmt.Errorf("reactivate main warehouse: %w", err)
			}
		}
		return w, nil
	}

	w = NewMainWarehouse()
	w.CreatedBy = appctx.ActorID(ctx)
	if err := s.repo.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("create main warehouse: %w", err)
	}
	return w, nil
}

// SetDefault points the registry at the warehouse, reactivating it if needed.
func (s *Service) SetDefault(ctx context.Context, warehouseID id.ID) (*Warehouse, error) {
	var result *Warehouse

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.LockRegistry(ctx); err != nil {
			return err
		}

		w, err := s.repo.GetByID(ctx, warehouseID)
		if err != nil {
			return err
		}

		if !w.IsActive {
			w.Activate()
			if err := s.repo.Update(ctx, w); err != nil {
				return fmt.Errorf("reactivate warehouse: %w", err)
			}
		}

		if err := s.pointDefault(ctx, w.ID); err != nil {
			return fmt.Errorf("set default warehouse: %w", err)
		}
		result = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.IsDefault = true
	s.remember(ctx, result.ID)
	logger.Info(ctx, "default warehouse changed", "warehouse_id", result.ID)
	return result, nil
}

// Create adds a warehouse, optionally making it the default in the same transaction.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Warehouse, error) {
	w := NewWarehouse(cmd.Code, cmd.Name, cmd.Type)
	w.Address = trimmed(cmd.Address)
	w.Description = trimmed(cmd.Description)
	w.CreatedBy = appctx.ActorID(ctx)

	if err := w.Validate(); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.repo.ExistsByCode(ctx, w.Code)
		if err != nil {
			return err
		}
		if exists {
			return apperror.NewDuplicate("warehouse", "code", w.Code)
		}

		if err := s.repo.Create(ctx, w); err != nil {
			return err
		}

		if cmd.IsDefault {
			if err := s.repo.LockRegistry(ctx); err != nil {
				return err
			}
			if err := s.pointDefault(ctx, w.ID); err != nil {
				return fmt.Errorf("set default warehouse: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cmd.IsDefault {
		w.IsDefault = true
		s.remember(ctx, w.ID)
	}
	return w, nil
}

// Update applies header changes. Clearing the default flag is refused: another
// warehouse has to be made default instead.
func (s *Service) Update(ctx context.Context, warehouseID id.ID, cmd UpdateCommand) (*Warehouse, error) {
	var result *Warehouse
	makeDefault := cmd.IsDefault != nil && *cmd.IsDefault

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		w, err := s.repo.GetByID(ctx, warehouseID)
		if err != nil {
			return err
		}
		if cmd.Version > 0 && cmd.Version != w.Version {
			return apperror.NewConcurrentModification("warehouse", warehouseID.String())
		}

		defaultID, err := s.repo.GetDefaultID(ctx)
		if err != nil {
			return err
		}
		isDefault := defaultID != nil && *defaultID == w.ID
		if cmd.IsDefault != nil && !*cmd.IsDefault && isDefault {
			return apperror.NewBusinessRule(apperror.CodeWarehouseInUse,
				"default warehouse cannot be unset; make another warehouse default instead")
		}

		if cmd.Name != nil {
			w.Name = strings.TrimSpace(*cmd.Name)
		}
		if cmd.Type != nil {
			w.Type = *cmd.Type
		}
		if cmd.Address != nil {
			w.Address = trimmed(cmd.Address)
		}
		if cmd.Description != nil {
			w.Description = trimmed(cmd.Description)
		}
		if makeDefault && !w.IsActive {
			w.IsActive = true
		}
		if err := w.Validate(); err != nil {
			return err
		}

		w.Touch()
		if err := s.repo.Update(ctx, w); err != nil {
			return err
		}

		if makeDefault && !isDefault {
			if err := s.repo.LockRegistry(ctx); err != nil {
				return err
			}
			if err := s.pointDefault(ctx, w.ID); err != nil {
				return fmt.Errorf("set default warehouse: %w", err)
			}
			isDefault = true
		}

		w.IsDefault = isDefault
		result = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	if makeDefault {
		s.remember(ctx, result.ID)
	}
	return result, nil
}

// Archive deactivates a warehouse that is not the default and holds no stock.
// Its empty stock rows are removed and the default invariant is re-checked.
func (s *Service) Archive(ctx context.Context, warehouseID id.ID) (*Warehouse, error) {
	var result *Warehouse

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.LockRegistry(ctx); err != nil {
			return err
		}

		w, err := s.repo.GetByID(ctx, warehouseID)
		if err != nil {
			return err
		}
		if !w.IsActive {
			result = w
			return nil
		}

		defaultID, err := s.repo.GetDefaultID(ctx)
		if err != nil {
			return err
		}
		if defaultID != nil && *defaultID == w.ID {
			return apperror.NewBusinessRule(apperror.CodeWarehouseInUse,
				"default warehouse cannot be archived").
				WithDetail("warehouse_id", w.ID.String())
		}

		total, err := s.repo.StockTotal(ctx, w.ID)
		if err != nil {
			return err
		}
		if !total.IsZero() {
			return apperror.NewBusinessRule(apperror.CodeWarehouseInUse,
				"warehouse still holds stock").
				WithDetail("warehouse_id", w.ID.String()).
				WithDetail("quantity", total.String())
		}

		removed, err := s.repo.DeleteEmptyStock(ctx, w.ID)
		if err != nil {
			return err
		}

		w.Archive()
		if err := s.repo.Update(ctx, w); err != nil {
			return err
		}

		logger.Info(ctx, "warehouse archived", "warehouse_id", w.ID, "stock_rows_removed", removed)
		result = w
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.EnsureDefault(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns a warehouse by id with IsDefault populated.
func (s *Service) Get(ctx context.Context, warehouseID id.ID) (*Warehouse, error) {
	w, err := s.repo.GetByID(ctx, warehouseID)
	if err != nil {
		return nil, err
	}
	defaultID, err := s.defaultID(ctx)
	if err != nil {
		return nil, err
	}
	w.IsDefault = defaultID != nil && *defaultID == w.ID
	return w, nil
}

// List returns warehouses with IsDefault populated.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Warehouse], error) {
	result, err := s.repo.List(ctx, filter.Normalize())
	if err != nil {
		return result, err
	}
	defaultID, err := s.defaultID(ctx)
	if err != nil {
		return result, err
	}
	for _, w := range result.Items {
		w.IsDefault = defaultID != nil && *defaultID == w.ID
	}
	return result, nil
}

// defaultID reads the registry row and brings the cache in line with it.
// Other processes may have moved the default without touching this cache.
func (s *Service) defaultID(ctx context.Context) (*id.ID, error) {
	registered, err := s.repo.GetDefaultID(ctx)
	if err != nil {
		return nil, err
	}
	cachedID, cached := s.cachedDefault(ctx)
	switch {
	case registered == nil:
		if cached {
			s.invalidate(ctx)
		}
	case !cached:
		s.remember(ctx, *registered)
	case cachedID != *registered:
		logger.Warn(ctx, "cached default warehouse is stale",
			"cached_id", cachedID, "warehouse_id", *registered)
		s.remember(ctx, *registered)
	}
	return registered, nil
}

// pointDefault moves the registry and drops the cached id before the
// transaction commits, so no reader keeps the old default afterwards.
func (s *Service) pointDefault(ctx context.Context, warehouseID id.ID) error {
	if err := s.repo.SetDefaultID(ctx, warehouseID); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) cachedDefault(ctx context.Context) (id.ID, bool) {
	if s.cache == nil {
		return id.Nil(), false
	}
	return s.cache.GetDefault(ctx)
}

func (s *Service) remember(ctx context.Context, warehouseID id.ID) {
	if s.cache != nil {
		s.cache.SetDefault(ctx, warehouseID)
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateDefault(ctx)
	}
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
