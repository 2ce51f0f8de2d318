// Package register_repo provides PostgreSQL implementations for register repositories.
package register_repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"restopos/internal/core/apperror"
	"restopos/internal/core/id"
	"restopos/internal/core/types"
	"restopos/internal/domain"
	"restopos/internal/domain/registers/stock"
	"restopos/internal/infrastructure/storage/postgres"
)

const (
	stockTable    = "inv_stock"
	movementTable = "inv_movements"
)

var _ stock.Repository = (*StockRepo)(nil)

// StockRepo implements stock.Repository.
// Quantity changes are single conditional statements evaluated by the database,
// so concurrent writers never lose updates or drive a row below zero.
type StockRepo struct {
	txManager    *postgres.TxManager
	builder      squirrel.StatementBuilderType
	stockCols    []string
	movementCols []string
}

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txManager *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txManager:    txManager,
		builder:      postgres.Builder(),
		stockCols:    postgres.ExtractDBColumns[stock.Stock](),
		movementCols: postgres.ExtractDBColumns[stock.Movement](),
	}
}

func (r *StockRepo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

func (r *StockRepo) GetOrCreateStock(ctx context.Context, itemID, warehouseID id.ID, seed stock.Seed) (*stock.Stock, error) {
	_, err := r.querier(ctx).Exec(ctx, `
		INSERT INTO `+stockTable+` (item_id, warehouse_id, quantity, par_level, reorder_point, safety_stock, created_at, updated_at)
		VALUES ($1, $2, 0, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (item_id, warehouse_id) DO NOTHING
	`, itemID, warehouseID, seed.ParLevel, seed.ReorderPoint, seed.SafetyStock)
	if err != nil {
		return nil, fmt.Errorf("ensure stock row: %w", err)
	}
	return r.GetStock(ctx, itemID, warehouseID)
}

func (r *StockRepo) GetStock(ctx context.Context, itemID, warehouseID id.ID) (*stock.Stock, error) {
	sql, args, err := r.builder.
		Select(r.stockCols...).
		From(stockTable).
		Where(squirrel.Eq{"item_id": itemID, "warehouse_id": warehouseID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row stock.Stock
	if err := pgxscan.Get(ctx, r.querier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("stock", itemID.String()).WithDetail("warehouseId", warehouseID.String())
		}
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return &row, nil
}

const incrementSQL = `
	UPDATE ` + stockTable + `
	SET quantity = quantity + $3, last_movement_at = NOW(), updated_at = NOW()
	WHERE item_id = $1 AND warehouse_id = $2 AND quantity + $3 >= 0
	RETURNING quantity`

func (r *StockRepo) Increment(ctx context.Context, itemID, warehouseID id.ID, delta types.Quantity) (types.Quantity, bool, error) {
	var after types.Quantity
	err := r.querier(ctx).QueryRow(ctx, incrementSQL, itemID, warehouseID, delta).Scan(&after)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("increment stock: %w", err)
	}
	return after, true, nil
}

// The CTE locks the row first; under READ COMMITTED it re-reads the latest
// committed quantity, so before and after describe the same version.
const decrementClampedSQL = `
	WITH cur AS (
		SELECT quantity FROM ` + stockTable + `
		WHERE item_id = $1 AND warehouse_id = $2
		FOR UPDATE
	)
	UPDATE ` + stockTable + ` s
	SET quantity = GREATEST(cur.quantity - $3, 0), last_movement_at = NOW(), updated_at = NOW()
	FROM cur
	WHERE s.item_id = $1 AND s.warehouse_id = $2
	RETURNING cur.quantity, s.quantity`

func (r *StockRepo) DecrementClamped(ctx context.Context, itemID, warehouseID id.ID, qty types.Quantity) (types.Quantity, types.Quantity, error) {
	var before, after types.Quantity
	err := r.querier(ctx).QueryRow(ctx, decrementClampedSQL, itemID, warehouseID, qty).Scan(&before, &after)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, apperror.NewNotFound("stock", itemID.String()).WithDetail("warehouseId", warehouseID.String())
	}
	if err != nil {
		return 0, 0, fmt.Errorf("decrement stock: %w", err)
	}
	return before, after, nil
}

const setQuantitySQL = `
	WITH cur AS (
		SELECT quantity FROM ` + stockTable + `
		WHERE item_id = $1 AND warehouse_id = $2
		FOR UPDATE
	)
	UPDATE ` + stockTable + ` s
	SET quantity = $3, last_count_date = $4, last_movement_at = NOW(), updated_at = NOW()
	FROM cur
	WHERE s.item_id = $1 AND s.warehouse_id = $2
	RETURNING cur.quantity`

func (r *StockRepo) SetQuantity(ctx context.Context, itemID, warehouseID id.ID, counted types.Quantity, countedAt time.Time) (types.Quantity, error) {
	var before types.Quantity
	err := r.querier(ctx).QueryRow(ctx, setQuantitySQL, itemID, warehouseID, counted, countedAt).Scan(&before)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperror.NewNotFound("stock", itemID.String()).WithDetail("warehouseId", warehouseID.String())
	}
	if err != nil {
		return 0, fmt.Errorf("set stock quantity: %w", err)
	}
	return before, nil
}

func (r *StockRepo) CreateMovement(ctx context.Context, m *stock.Movement) error {
	sql, args, err := r.builder.
		Insert(movementTable).
		SetMap(postgres.PickColumns(postgres.StructToMap(m), r.movementCols)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert movement: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

func (r *StockRepo) HasMovement(ctx context.Context, movementType stock.MovementType, reference string, itemID, warehouseID id.ID) (bool, error) {
	var exists bool
	err := r.querier(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM `+movementTable+`
			WHERE type = $1 AND reference = $2 AND item_id = $3 AND warehouse_id = $4
		)`, string(movementType), reference, itemID, warehouseID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has movement: %w", err)
	}
	return exists, nil
}

func (r *StockRepo) movementWhere(filter stock.MovementFilter) squirrel.And {
	where := squirrel.And{}
	if filter.ItemID != nil {
		where = append(where, squirrel.Eq{"item_id": *filter.ItemID})
	}
	if filter.WarehouseID != nil {
		where = append(where, squirrel.Eq{"warehouse_id": *filter.WarehouseID})
	}
	if filter.SupplierID != nil {
		where = append(where, squirrel.Eq{"supplier_id": *filter.SupplierID})
	}
	if len(filter.Types) > 0 {
		names := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			names[i] = string(t)
		}
		where = append(where, squirrel.Eq{"type": names})
	}
	if filter.Reference != "" {
		where = append(where, squirrel.Eq{"reference": filter.Reference})
	}
	if filter.From != nil {
		where = append(where, squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		where = append(where, squirrel.Lt{"created_at": *filter.To})
	}
	return where
}

func (r *StockRepo) ListMovements(ctx context.Context, filter stock.MovementFilter) (domain.ListResult[*stock.Movement], error) {
	page := filter.Page.Normalize()
	result := domain.ListResult[*stock.Movement]{Limit: page.Limit, Offset: page.Offset, Items: []*stock.Movement{}}
	where := r.movementWhere(filter)
	querier := r.querier(ctx)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").From(movementTable).Where(where).ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count movements: %w", err)
	}

	sql, args, err := r.builder.
		Select(r.movementCols...).
		From(movementTable).
		Where(where).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list movements: %w", err)
	}
	return result, nil
}

func (r *StockRepo) stockLineQuery(filter stock.StockFilter) squirrel.SelectBuilder {
	cols := make([]string, 0, len(r.stockCols)+6)
	for _, c := range r.stockCols {
		cols = append(cols, "s."+c)
	}
	cols = append(cols,
		"i.name AS item_name",
		"i.code AS sku",
		"i.unit",
		"i.par_level AS item_par_level",
		"i.cost AS item_cost",
		"w.code AS warehouse_code",
	)

	q := r.builder.
		Select(cols...).
		From(stockTable + " s").
		Join("inv_items i ON i.id = s.item_id").
		Join("inv_warehouses w ON w.id = s.warehouse_id")

	if filter.ItemID != nil {
		q = q.Where(squirrel.Eq{"s.item_id": *filter.ItemID})
	}
	if filter.WarehouseID != nil {
		q = q.Where(squirrel.Eq{"s.warehouse_id": *filter.WarehouseID})
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + search + "%"
		q = q.Where(squirrel.Or{squirrel.ILike{"i.name": pattern}, squirrel.ILike{"i.code": pattern}})
	}
	if filter.ExcludeZero {
		q = q.Where(squirrel.Gt{"s.quantity": 0})
	}
	return q
}

func (r *StockRepo) ListStock(ctx context.Context, filter stock.StockFilter) (domain.ListResult[*stock.StockLine], error) {
	page := filter.Page.Normalize()
	result := domain.ListResult[*stock.StockLine]{Limit: page.Limit, Offset: page.Offset, Items: []*stock.StockLine{}}
	q := r.stockLineQuery(filter)
	querier := r.querier(ctx)

	countSQL, countArgs, err := r.builder.Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count stock: %w", err)
	}

	sql, args, err := q.
		OrderBy("i.code", "w.code").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list stock: %w", err)
	}
	return result, nil
}

func (r *StockRepo) RecalcItemTotals(ctx context.Context, itemID id.ID) (types.Quantity, error) {
	var total types.Quantity
	err := r.querier(ctx).QueryRow(ctx, `
		UPDATE inv_items
		SET current_stock = (SELECT COALESCE(SUM(quantity), 0) FROM `+stockTable+` WHERE item_id = $1)
		WHERE id = $1
		RETURNING current_stock
	`, itemID).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperror.NewNotFound("item", itemID.String())
	}
	if err != nil {
		return 0, fmt.Errorf("recalc item totals: %w", err)
	}
	return total, nil
}
