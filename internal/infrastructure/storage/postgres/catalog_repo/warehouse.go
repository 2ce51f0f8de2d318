package catalog_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"restopos/internal/core/id"
	"restopos/internal/core/types"
	"restopos/internal/domain"
	"restopos/internal/domain/catalogs/warehouse"
	"restopos/internal/infrastructure/storage/postgres"
)

const (
	warehouseTable = "inv_warehouses"
	registryTable  = "inv_warehouse_registry"
)

var _ warehouse.Repository = (*WarehouseRepo)(nil)

// WarehouseRepo implements warehouse.Repository.
type WarehouseRepo struct {
	*BaseCatalogRepo[*warehouse.Warehouse]
}

// NewWarehouseRepo creates a new warehouse repository.
func NewWarehouseRepo(txManager *postgres.TxManager) *WarehouseRepo {
	return &WarehouseRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			warehouseTable,
			"warehouse",
			postgres.ExtractDBColumns[warehouse.Warehouse](),
			func() *warehouse.Warehouse { return &warehouse.Warehouse{} },
		),
	}
}

func (r *WarehouseRepo) Update(ctx context.Context, w *warehouse.Warehouse) error {
	return r.BaseCatalogRepo.Update(ctx, w)
}

func (r *WarehouseRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*warehouse.Warehouse], error) {
	return r.BaseCatalogRepo.List(ctx, r.ListQuery(filter), filter)
}

// LockRegistry creates the singleton registry row if needed and locks it.
func (r *WarehouseRepo) LockRegistry(ctx context.Context) error {
	q := r.querier(ctx)
	if _, err := q.Exec(ctx, `INSERT INTO `+registryTable+` (id) VALUES (1) ON CONFLICT (id) DO NOTHING`); err != nil {
		return fmt.Errorf("ensure warehouse registry: %w", err)
	}
	var one int
	if err := q.QueryRow(ctx, `SELECT id FROM `+registryTable+` WHERE id = 1 FOR UPDATE`).Scan(&one); err != nil {
		return fmt.Errorf("lock warehouse registry: %w", err)
	}
	return nil
}

func (r *WarehouseRepo) GetDefaultID(ctx context.Context) (*id.ID, error) {
	var defaultID *id.ID
	err := r.querier(ctx).
		QueryRow(ctx, `SELECT default_warehouse_id FROM `+registryTable+` WHERE id = 1`).
		Scan(&defaultID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get default warehouse: %w", err)
	}
	return defaultID, nil
}

func (r *WarehouseRepo) SetDefaultID(ctx context.Context, warehouseID id.ID) error {
	_, err := r.querier(ctx).Exec(ctx, `
		INSERT INTO `+registryTable+` (id, default_warehouse_id, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET default_warehouse_id = EXCLUDED.default_warehouse_id, updated_at = NOW()
	`, warehouseID)
	if err != nil {
		return fmt.Errorf("set default warehouse: %w", err)
	}
	return nil
}

func (r *WarehouseRepo) StockTotal(ctx context.Context, warehouseID id.ID) (types.Quantity, error) {
	var total types.Quantity
	err := r.querier(ctx).
		QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM inv_stock WHERE warehouse_id = $1`, warehouseID).
		Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("warehouse stock total: %w", err)
	}
	return total, nil
}

func (r *WarehouseRepo) DeleteEmptyStock(ctx context.Context, warehouseID id.ID) (int64, error) {
	tag, err := r.querier(ctx).Exec(ctx, `DELETE FROM inv_stock WHERE warehouse_id = $1 AND quantity = 0`, warehouseID)
	if err != nil {
		return 0, fmt.Errorf("delete empty stock rows: %w", err)
	}
	return tag.RowsAffected(), nil
}
