package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"restopos/internal/core/apperror"
	"restopos/internal/core/id"
	"restopos/internal/core/types"
	"restopos/internal/domain"
	"restopos/internal/domain/catalogs/item"
	"restopos/internal/infrastructure/storage/postgres"
)

const itemTable = "inv_items"

var _ item.Repository = (*ItemRepo)(nil)

// ItemRepo implements item.Repository.
type ItemRepo struct {
	*BaseCatalogRepo[*item.Item]
}

// NewItemRepo creates a new item repository.
func NewItemRepo(txManager *postgres.TxManager) *ItemRepo {
	return &ItemRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			itemTable,
			"item",
			postgres.ExtractDBColumns[item.Item](),
			func() *item.Item { return &item.Item{} },
		),
	}
}

// stockCols are owned by the stock register and supplier purchases
// (RecalcItemTotals, UpdateCost); a header edit must not write them back.
var stockCols = []string{"current_stock", "cost", "last_restock_date"}

// Update never writes stockCols.
func (r *ItemRepo) Update(ctx context.Context, it *item.Item) error {
	return r.BaseCatalogRepo.Update(ctx, it, stockCols...)
}

func (r *ItemRepo) GetMany(ctx context.Context, ids []id.ID) (map[id.ID]*item.Item, error) {
	out := make(map[id.ID]*item.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	items, err := r.FindMany(ctx, r.baseSelect().Where(squirrel.Eq{"id": ids}))
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}

func (r *ItemRepo) List(ctx context.Context, filter item.Filter) (domain.ListResult[*item.Item], error) {
	return r.BaseCatalogRepo.List(ctx, r.listQuery(filter), filter.ListFilter)
}

func (r *ItemRepo) listQuery(filter item.Filter) squirrel.SelectBuilder {
	q := r.ListQuery(filter.ListFilter)
	if filter.Category != "" {
		q = q.Where(squirrel.Eq{"category": filter.Category})
	}
	return q
}

func (r *ItemRepo) StockTotal(ctx context.Context, itemID id.ID) (types.Quantity, error) {
	var total types.Quantity
	err := r.querier(ctx).
		QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM inv_stock WHERE item_id = $1`, itemID).
		Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("item stock total: %w", err)
	}
	return total, nil
}

func (r *ItemRepo) UpdateCost(ctx context.Context, itemID id.ID, cost types.Money, restockedAt time.Time) error {
	sql, args, err := r.Builder().
		Update(itemTable).
		Set("cost", cost).
		Set("last_restock_date", restockedAt).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": itemID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update cost: %w", err)
	}

	tag, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update item cost: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("item", itemID.String())
	}
	return nil
}
