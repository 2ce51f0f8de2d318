package stock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"restopos/internal/core/apperror"
	appctx "restopos/internal/core/context"
	"restopos/internal/core/id"
	"restopos/internal/core/numerator"
	"restopos/internal/core/tx"
	"restopos/internal/core/types"
	"restopos/internal/domain"
	"restopos/internal/domain/audit"
	"restopos/internal/domain/catalogs/item"
	"restopos/internal/domain/catalogs/warehouse"
	"restopos/pkg/logger"
)

// ItemCatalog is the part of the item catalog the ledger needs.
type ItemCatalog interface {
	GetActive(ctx context.Context, itemID id.ID) (*item.Item, error)
	GetBySKU(ctx context.Context, sku string) (*item.Item, error)
	Create(ctx context.Context, cmd item.CreateCommand) (*item.Item, error)
}

// WarehouseResolver resolves explicit or implicit warehouse references.
type WarehouseResolver interface {
	Resolve(ctx context.Context, warehouseID *id.ID) (*warehouse.Warehouse, error)
}

// AdjustCommand is a manual stock adjustment.
type AdjustCommand struct {
	ItemID      id.ID
	WarehouseID *id.ID
	Type        MovementType
	// Quantity is forced positive for incoming and negative for usage, waste
	// and return. Adjustments keep the given sign.
	Quantity  types.Quantity
	UnitCost  *types.Money
	Reason    string
	Reference string
}

// TransferCommand moves stock between two warehouses.
type TransferCommand struct {
	ItemID          id.ID
	FromWarehouseID *id.ID
	ToWarehouseID   *id.ID
	Quantity        types.Quantity
	Reason          string
	Reference       string
}

// TransferResult holds both legs of a transfer.
type TransferResult struct {
	Out *Applied
	In  *Applied
}

// CountLine is one counted item.
type CountLine struct {
	ItemID  id.ID
	Counted types.Quantity
}

// CountCommand reconciles a warehouse against a physical count.
type CountCommand struct {
	WarehouseID *id.ID
	Lines       []CountLine
	Reason      string
	Reference   string
}

// CountResult reports every counted line; Movement is nil for unchanged lines.
type CountResult struct {
	WarehouseID id.ID
	Reference   string
	Lines       []*Applied
}

// Service provides the manual stock operations.
type Service struct {
	repo       Repository
	ledger     *Ledger
	txManager  tx.Manager
	items      ItemCatalog
	warehouses WarehouseResolver
	actions    audit.Recorder
	numbers    numerator.Generator
}

// NewService creates a new stock service. actions may be nil.
func NewService(
	repo Repository,
	ledger *Ledger,
	txManager tx.Manager,
	items ItemCatalog,
	warehouses WarehouseResolver,
	actions audit.Recorder,
) *Service {
	if actions == nil {
		actions = audit.NopRecorder{}
	}
	return &Service{
		repo:       repo,
		ledger:     ledger,
		txManager:  txManager,
		items:      items,
		warehouses: warehouses,
		actions:    actions,
	}
}

// WithNumbering makes counts without a reference draw one from g.
func (s *Service) WithNumbering(g numerator.Generator) *Service {
	s.numbers = g
	return s
}

// Ledger exposes the mutation primitive to other inventory flows.
func (s *Service) Ledger() *Ledger { return s.ledger }

// Adjust applies a manual change. Negative results are rejected.
func (s *Service) Adjust(ctx context.Context, cmd AdjustCommand) (*Applied, error) {
	delta, err := signedDelta(cmd.Type, cmd.Quantity)
	if err != nil {
		return nil, err
	}
	if cmd.UnitCost != nil && cmd.UnitCost.IsNegative() {
		return nil, apperror.NewInvalidInput("unitCost", "unit cost must not be negative")
	}

	var applied *Applied
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		it, err := s.items.GetActive(ctx, cmd.ItemID)
		if err != nil {
			return err
		}
		wh, err := s.warehouseFor(ctx, cmd.WarehouseID, it)
		if err != nil {
			return err
		}

		applied, err = s.ledger.Apply(ctx, Mutation{
			Item:        it,
			WarehouseID: wh.ID,
			Type:        cmd.Type,
			Policy:      PolicyReject,
			Delta:       delta,
			Seed:        SeedFor(it),
			UnitCost:    cmd.UnitCost,
			Reason:      strings.TrimSpace(cmd.Reason),
			Reference:   strings.TrimSpace(cmd.Reference),
		})
		if err != nil {
			return err
		}

		return s.actions.Record(ctx, audit.Entry{
			Action:     audit.ActionStockAdjust,
			EntityType: "item",
			EntityID:   it.ID.String(),
			ActorID:    appctx.ActorID(ctx),
			Summary:    fmt.Sprintf("%s %s %s in %s", cmd.Type, delta, it.Unit, wh.Code),
			Details: map[string]any{
				"movementId":   applied.Movement.ID.String(),
				"warehouseId":  wh.ID.String(),
				"delta":        delta.String(),
				"balanceAfter": applied.After.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.ledger.Notify(ctx, applied)
	logger.Info(ctx, "stock adjusted",
		"item_id", cmd.ItemID,
		"warehouse_id", applied.WarehouseID,
		"type", cmd.Type,
		"delta", applied.Movement.Delta,
		"balance_after", applied.After,
	)
	return applied, nil
}

// Transfer moves quantity from one warehouse to another. Both legs commit together.
func (s *Service) Transfer(ctx context.Context, cmd TransferCommand) (*TransferResult, error) {
	if !cmd.Quantity.IsPositive() {
		return nil, apperror.NewInvalidInput("quantity", "quantity must be positive")
	}

	result := &TransferResult{}
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		it, err := s.items.GetActive(ctx, cmd.ItemID)
		if err != nil {
			return err
		}
		from, err := s.warehouses.Resolve(ctx, cmd.FromWarehouseID)
		if err != nil {
			return err
		}
		to, err := s.warehouses.Resolve(ctx, cmd.ToWarehouseID)
		if err != nil {
			return err
		}
		if from.ID == to.ID {
			return apperror.NewInvalidInput("toWarehouseId", "source and target warehouses must differ")
		}

		reason := strings.TrimSpace(cmd.Reason)
		reference := strings.TrimSpace(cmd.Reference)

		result.Out, err = s.ledger.Apply(ctx, Mutation{
			Item:              it,
			WarehouseID:       from.ID,
			Type:              MovementTransferOut,
			Policy:            PolicyReject,
			Delta:             -cmd.Quantity,
			Seed:              SeedFor(it),
			Reason:            reason,
			Reference:         reference,
			SourceWarehouseID: &from.ID,
			TargetWarehouseID: &to.ID,
			SkipTotals:        true,
		})
		if err != nil {
			return err
		}

		result.In, err = s.ledger.Apply(ctx, Mutation{
			Item:              it,
			WarehouseID:       to.ID,
			Type:              MovementTransferIn,
			Policy:            PolicyReject,
			Delta:             cmd.Quantity,
			Seed:              SeedFor(it),
			Reason:            reason,
			Reference:         reference,
			SourceWarehouseID: &from.ID,
			TargetWarehouseID: &to.ID,
		})
		if err != nil {
			return err
		}
		result.Out.ItemTotal = result.In.ItemTotal

		return s.actions.Record(ctx, audit.Entry{
			Action:     audit.ActionStockTransfer,
			EntityType: "item",
			EntityID:   it.ID.String(),
			ActorID:    appctx.ActorID(ctx),
			Summary:    fmt.Sprintf("transfer %s %s %s -> %s", cmd.Quantity, it.Unit, from.Code, to.Code),
			Details: map[string]any{
				"fromWarehouseId": from.ID.String(),
				"toWarehouseId":   to.ID.String(),
				"quantity":        cmd.Quantity.String(),
				"outMovementId":   result.Out.Movement.ID.String(),
				"inMovementId":    result.In.Movement.ID.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.ledger.Notify(ctx, result.Out, result.In)
	logger.Info(ctx, "stock transferred",
		"item_id", cmd.ItemID,
		"from", result.Out.WarehouseID,
		"to", result.In.WarehouseID,
		"quantity", cmd.Quantity,
	)
	return result, nil
}

// CycleCount sets every counted line to its absolute quantity. Counts are never
// rejected for going negative; unchanged lines produce no movement.
func (s *Service) CycleCount(ctx context.Context, cmd CountCommand) (*CountResult, error) {
	if len(cmd.Lines) == 0 {
		return nil, apperror.NewInvalidInput("lines", "at least one counted line is required")
	}
	seen := make(map[id.ID]struct{}, len(cmd.Lines))
	for i, line := range cmd.Lines {
		if line.Counted.IsNegative() {
			return nil, apperror.NewInvalidInput(fmt.Sprintf("lines[%d].countedQuantity", i), "counted quantity must not be negative")
		}
		if _, dup := seen[line.ItemID]; dup {
			return nil, apperror.NewInvalidInput(fmt.Sprintf("lines[%d].itemId", i), "item counted twice")
		}
		seen[line.ItemID] = struct{}{}
	}

	result := &CountResult{}
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		wh, err := s.warehouses.Resolve(ctx, cmd.WarehouseID)
		if err != nil {
			return err
		}
		result.WarehouseID = wh.ID

		result.Reference = strings.TrimSpace(cmd.Reference)
		if result.Reference == "" && s.numbers != nil {
			result.Reference, err = s.numbers.Next(ctx, numerator.DefaultConfig(numerator.PrefixCount), time.Now().UTC())
			if err != nil {
				return err
			}
		}

		changed := 0
		for _, line := range cmd.Lines {
			it, err := s.items.GetActive(ctx, line.ItemID)
			if err != nil {
				return err
			}
			applied, err := s.ledger.Apply(ctx, Mutation{
				Item:        it,
				WarehouseID: wh.ID,
				Type:        MovementCountAdjustment,
				Policy:      PolicyAbsolute,
				Counted:     line.Counted,
				Seed:        SeedFor(it),
				Reason:      strings.TrimSpace(cmd.Reason),
				Reference:   result.Reference,
			})
			if err != nil {
				return err
			}
			if applied.Movement != nil {
				changed++
			}
			result.Lines = append(result.Lines, applied)
		}

		return s.actions.Record(ctx, audit.Entry{
			Action:     audit.ActionStockCount,
			EntityType: "warehouse",
			EntityID:   wh.ID.String(),
			ActorID:    appctx.ActorID(ctx),
			Summary:    fmt.Sprintf("cycle count in %s: %d lines, %d changed", wh.Code, len(cmd.Lines), changed),
			Details:    map[string]any{"lines": len(cmd.Lines), "changed": changed, "reference": result.Reference},
		})
	})
	if err != nil {
		return nil, err
	}

	s.ledger.Notify(ctx, result.Lines...)
	return result, nil
}

// RecalcItemTotals recomputes an item's cached total from its stock rows.
func (s *Service) RecalcItemTotals(ctx context.Context, itemID id.ID) (types.Quantity, error) {
	var total types.Quantity
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		total, err = s.repo.RecalcItemTotals(ctx, itemID)
		return err
	})
	return total, err
}

// ListStock returns stock rows with item names.
func (s *Service) ListStock(ctx context.Context, filter StockFilter) (domain.ListResult[*StockLine], error) {
	filter.Page = filter.Page.Normalize()
	return s.repo.ListStock(ctx, filter)
}

// ItemStock returns an item's stock in every warehouse.
func (s *Service) ItemStock(ctx context.Context, itemID id.ID) ([]*StockLine, error) {
	res, err := s.repo.ListStock(ctx, StockFilter{ItemID: &itemID, Page: domain.Page{Limit: domain.MaxPageSize}})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// ListMovements returns movements newest first.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) (domain.ListResult[*Movement], error) {
	for _, t := range filter.Types {
		if !t.IsValid() {
			return domain.ListResult[*Movement]{}, apperror.NewInvalidInput("type", "unknown movement type").
				WithDetail("value", string(t))
		}
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return domain.ListResult[*Movement]{}, apperror.NewInvalidInput("to", "range end precedes range start")
	}
	filter.Page = filter.Page.Normalize()
	return s.repo.ListMovements(ctx, filter)
}

func (s *Service) warehouseFor(ctx context.Context, explicit *id.ID, it *item.Item) (*warehouse.Warehouse, error) {
	return ResolveWarehouse(ctx, s.warehouses, explicit, it)
}

// ResolveWarehouse prefers the explicit warehouse, then the item's default warehouse,
// then the registry default. An archived item default falls through to the registry.
func ResolveWarehouse(ctx context.Context, warehouses WarehouseResolver, explicit *id.ID, it *item.Item) (*warehouse.Warehouse, error) {
	if explicit != nil && !id.IsNil(*explicit) {
		return warehouses.Resolve(ctx, explicit)
	}
	if it.DefaultWarehouseID != nil {
		wh, err := warehouses.Resolve(ctx, it.DefaultWarehouseID)
		if err == nil {
			return wh, nil
		}
		if !apperror.IsNotFound(err) {
			return nil, err
		}
		logger.Warn(ctx, "item default warehouse unavailable, using registry default",
			"item_id", it.ID, "warehouse_id", it.DefaultWarehouseID)
	}
	return warehouses.Resolve(ctx, nil)
}

// signedDelta applies the sign rules of manual adjustments.
func signedDelta(t MovementType, q types.Quantity) (types.Quantity, error) {
	if q.IsZero() {
		return 0, apperror.NewInvalidInput("quantity", "quantity must not be zero")
	}
	switch t {
	case MovementIncoming:
		return q.Abs(), nil
	case MovementUsage, MovementWaste, MovementReturn:
		return -q.Abs(), nil
	case MovementAdjustment:
		return q, nil
	}
	return 0, apperror.NewInvalidInput("type", "type must be one of incoming, usage, waste, return, adjustment").
		WithDetail("value", string(t))
}

// SeedFor copies the item's levels into a new stock row.
func SeedFor(it *item.Item) Seed {
	return Seed{
		ParLevel:     it.ParLevel,
		ReorderPoint: it.ReorderPoint,
		SafetyStock:  it.SafetyStock,
	}
}
