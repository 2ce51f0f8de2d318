package stock

import (
	"context"
	"fmt"
	"strings"

	"restopos/internal/core/apperror"
	appctx "restopos/internal/core/context"
	"restopos/internal/core/id"
	"restopos/internal/core/types"
	"restopos/internal/domain"
	"restopos/internal/domain/audit"
	"restopos/internal/domain/catalogs/item"
	"restopos/pkg/logger"
)

// Row is the exchange format of stock import and export.
type Row struct {
	Name     string         `json:"name"`
	SKU      string         `json:"sku"`
	Quantity types.Quantity `json:"quantity"`
	Unit     string         `json:"unit"`
	ParLevel types.Quantity `json:"parLevel"`
}

// ImportCommand loads absolute quantities into one warehouse.
type ImportCommand struct {
	WarehouseID *id.ID
	Rows        []Row
	Reason      string
}

// ImportResult summarizes an import.
type ImportResult struct {
	WarehouseID  id.ID      `json:"warehouseId"`
	ItemsCreated int        `json:"itemsCreated"`
	Adjusted     int        `json:"adjusted"`
	Unchanged    int        `json:"unchanged"`
	Lines        []*Applied `json:"-"`
}

// Import creates unknown items by SKU and sets each row's quantity with a
// count_adjustment of (imported - existing).
func (s *Service) Import(ctx context.Context, cmd ImportCommand) (*ImportResult, error) {
	if len(cmd.Rows) == 0 {
		return nil, apperror.NewInvalidInput("rows", "nothing to import")
	}
	seen := make(map[string]int, len(cmd.Rows))
	for i := range cmd.Rows {
		row := &cmd.Rows[i]
		row.SKU = item.NormalizeSKU(row.SKU)
		row.Name = strings.TrimSpace(row.Name)
		if row.SKU == "" {
			return nil, apperror.NewInvalidInput(fmt.Sprintf("rows[%d].sku", i), "sku is required")
		}
		if row.Quantity.IsNegative() {
			return nil, apperror.NewInvalidInput(fmt.Sprintf("rows[%d].quantity", i), "quantity must not be negative")
		}
		if prev, dup := seen[row.SKU]; dup {
			return nil, apperror.NewInvalidInput(fmt.Sprintf("rows[%d].sku", i), "duplicate sku").
				WithDetail("firstRow", prev)
		}
		seen[row.SKU] = i
	}

	result := &ImportResult{}
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		wh, err := s.warehouses.Resolve(ctx, cmd.WarehouseID)
		if err != nil {
			return err
		}
		result.WarehouseID = wh.ID

		reason := strings.TrimSpace(cmd.Reason)
		if reason == "" {
			reason = "import"
		}

		for i, row := range cmd.Rows {
			it, created, err := s.itemForRow(ctx, row)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			if created {
				result.ItemsCreated++
			}

			seed := SeedFor(it)
			if row.ParLevel.IsPositive() {
				seed.ParLevel = row.ParLevel
			}
			applied, err := s.ledger.Apply(ctx, Mutation{
				Item:        it,
				WarehouseID: wh.ID,
				Type:        MovementCountAdjustment,
				Policy:      PolicyAbsolute,
				Counted:     row.Quantity,
				Seed:        seed,
				Reason:      reason,
			})
			if err != nil {
				return err
			}
			if applied.Movement != nil {
				result.Adjusted++
			} else {
				result.Unchanged++
			}
			result.Lines = append(result.Lines, applied)
		}

		return s.actions.Record(ctx, audit.Entry{
			Action:     audit.ActionStockImport,
			EntityType: "warehouse",
			EntityID:   wh.ID.String(),
			ActorID:    appctx.ActorID(ctx),
			Summary:    fmt.Sprintf("import into %s: %d rows", wh.Code, len(cmd.Rows)),
			Details: map[string]any{
				"rows":         len(cmd.Rows),
				"itemsCreated": result.ItemsCreated,
				"adjusted":     result.Adjusted,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.ledger.Notify(ctx, result.Lines...)
	logger.Info(ctx, "stock imported",
		"warehouse_id", result.WarehouseID,
		"rows", len(cmd.Rows),
		"items_created", result.ItemsCreated,
		"adjusted", result.Adjusted,
	)
	return result, nil
}

func (s *Service) itemForRow(ctx context.Context, row Row) (*item.Item, bool, error) {
	it, err := s.items.GetBySKU(ctx, row.SKU)
	if err == nil {
		if !it.IsActive {
			return nil, false, apperror.NewNotFound("item", row.SKU).WithDetail("reason", "inactive")
		}
		return it, false, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, false, err
	}

	name := row.Name
	if name == "" {
		name = row.SKU
	}
	it, err = s.items.Create(ctx, item.CreateCommand{
		SKU:      row.SKU,
		Name:     name,
		Unit:     row.Unit,
		ParLevel: row.ParLevel,
	})
	if err != nil {
		return nil, false, err
	}
	return it, true, nil
}

// Export returns every stock row of a warehouse in the import format.
func (s *Service) Export(ctx context.Context, warehouseID *id.ID) ([]Row, error) {
	wh, err := s.warehouses.Resolve(ctx, warehouseID)
	if err != nil {
		return nil, err
	}

	var rows []Row
	page := domain.Page{Limit: domain.MaxPageSize}
	for {
		res, err := s.repo.ListStock(ctx, StockFilter{WarehouseID: &wh.ID, Page: page})
		if err != nil {
			return nil, err
		}
		for _, line := range res.Items {
			rows = append(rows, Row{
				Name:     line.ItemName,
				SKU:      line.SKU,
				Quantity: line.Quantity,
				Unit:     line.Unit,
				ParLevel: line.EffectiveParLevel(),
			})
		}
		page.Offset += len(res.Items)
		if len(res.Items) < page.Limit || int64(page.Offset) >= res.TotalCount {
			break
		}
	}
	return rows, nil
}
