// Package report_repo provides PostgreSQL implementations for report repositories.
package report_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"restopos/internal/domain"
	"restopos/internal/domain/registers/stock"
	"restopos/internal/domain/reports"
	"restopos/internal/infrastructure/storage/postgres"
)

var _ reports.Repository = (*ReportRepo)(nil)

// outflowTypes are the movement types counted as consumption.
var outflowTypes = []string{
	string(stock.MovementUsage),
	string(stock.MovementWaste),
	string(stock.MovementTransferOut),
	string(stock.MovementReturn),
}

// ReportRepo implements reports.Repository.
type ReportRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewReportRepo creates a new report repository.
func NewReportRepo(txManager *postgres.TxManager) *ReportRepo {
	return &ReportRepo{
		txManager: txManager,
		builder:   postgres.Builder(),
	}
}

func (r *ReportRepo) lowStockQuery(page domain.Page) squirrel.SelectBuilder {
	return r.builder.
		Select(
			"id AS item_id",
			"code AS sku",
			"name",
			"unit",
			"current_stock",
			"par_level",
			"reorder_point",
		).
		From("inv_items").
		Where(squirrel.Eq{"is_active": true, "alert_enabled": true}).
		Where(squirrel.Gt{"par_level": 0}).
		Where("current_stock <= par_level").
		OrderBy("par_level - current_stock DESC", "code").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset))
}

func (r *ReportRepo) LowStock(ctx context.Context, page domain.Page) ([]reports.LowStockRow, error) {
	sql, args, err := r.lowStockQuery(page).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows := []reports.LowStockRow{}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("low stock: %w", err)
	}
	return rows, nil
}

func (r *ReportRepo) ExpiryCandidates(ctx context.Context) ([]reports.ExpiryCandidate, error) {
	rows := []reports.ExpiryCandidate{}
	err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, `
		SELECT id AS item_id, code AS sku, name, current_stock, last_restock_date, shelf_life_days
		FROM inv_items
		WHERE is_active AND track_expiry AND shelf_life_days > 0 AND last_restock_date IS NOT NULL
		ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("expiry candidates: %w", err)
	}
	return rows, nil
}

const consumptionSQL = `
	SELECT i.id AS item_id, i.code AS sku, i.name, i.unit,
	       SUM(ABS(m.delta))::BIGINT AS consumed,
	       COUNT(*) AS movements
	FROM inv_movements m
	JOIN inv_items i ON i.id = m.item_id
	WHERE m.type = ANY($1) AND m.created_at >= $2
	GROUP BY i.id, i.code, i.name, i.unit
	ORDER BY consumed DESC, i.code
	LIMIT $3`

func (r *ReportRepo) Consumption(ctx context.Context, from time.Time, limit int) ([]reports.FastMovingRow, error) {
	rows := []reports.FastMovingRow{}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, consumptionSQL, outflowTypes, from, limit); err != nil {
		return nil, fmt.Errorf("consumption: %w", err)
	}
	return rows, nil
}

func (r *ReportRepo) recipeCostsQuery(page domain.Page) squirrel.SelectBuilder {
	return r.builder.
		Select(
			"id AS recipe_id",
			"code",
			"name",
			"NULLIF(menu_item_name, '') AS menu_item_name",
			"menu_item_price",
			"estimated_cost",
		).
		From("recipes").
		Where(squirrel.Eq{"is_active": true}).
		OrderBy("code").
		Limit(uint64(page.Limit)).
		Offset(uint64(page.Offset))
}

func (r *ReportRepo) RecipeCosts(ctx context.Context, page domain.Page) ([]reports.RecipeCost, error) {
	sql, args, err := r.recipeCostsQuery(page).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows := []reports.RecipeCost{}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("recipe costs: %w", err)
	}
	return rows, nil
}

const dailyUsageSQL = `
	SELECT i.id AS item_id, i.code AS sku, i.name,
	       date_trunc('day', m.created_at AT TIME ZONE 'UTC') AT TIME ZONE 'UTC' AS day,
	       SUM(ABS(m.delta))::BIGINT AS consumed
	FROM inv_movements m
	JOIN inv_items i ON i.id = m.item_id
	WHERE m.type = $1 AND m.created_at >= $2
	GROUP BY i.id, i.code, i.name, day
	ORDER BY i.code, day`

func (r *ReportRepo) DailyUsage(ctx context.Context, from time.Time) ([]reports.DailyUsage, error) {
	rows := []reports.DailyUsage{}
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, dailyUsageSQL, string(stock.MovementUsage), from); err != nil {
		return nil, fmt.Errorf("daily usage: %w", err)
	}
	return rows, nil
}

const summarySQL = `
	SELECT
		(SELECT COUNT(*) FROM inv_items WHERE is_active) AS items,
		(SELECT COUNT(*) FROM inv_items
		  WHERE is_active AND alert_enabled AND par_level > 0 AND current_stock <= par_level) AS low_stock_items,
		(SELECT COUNT(*) FROM inv_warehouses WHERE is_active) AS warehouses,
		(SELECT COUNT(*) FROM recipes WHERE is_active) AS recipes,
		(SELECT COUNT(*) FROM suppliers WHERE is_active) AS suppliers,
		(SELECT COALESCE(SUM(current_stock::NUMERIC / 10000 * cost), 0)::NUMERIC(18, 4)
		   FROM inv_items WHERE is_active) AS stock_value,
		(SELECT COALESCE(SUM(balance), 0) FROM suppliers WHERE is_active) AS outstanding_balance`

func (r *ReportRepo) Summary(ctx context.Context) (*reports.Summary, error) {
	var s reports.Summary
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &s, summarySQL); err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	s.GeneratedAt = time.Now().UTC()
	return &s, nil
}
