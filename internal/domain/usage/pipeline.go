package usage

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"restopos/internal/core/apperror"
	appctx "restopos/internal/core/context"
	"restopos/internal/core/entity"
	"restopos/internal/core/events"
	"restopos/internal/core/id"
	"restopos/internal/core/tx"
	"restopos/internal/domain/audit"
	"restopos/internal/domain/catalogs/item"
	"restopos/internal/domain/catalogs/recipe"
	"restopos/internal/domain/catalogs/warehouse"
	"restopos/internal/domain/registers/stock"
	"restopos/pkg/logger"
)

var tracer = otel.Tracer("restopos/usage")

// ErrLocked is returned by a Locker when another worker holds the order.
var ErrLocked = errors.New("order usage is being processed elsewhere")

// Locker serializes pipeline runs for the same order across workers.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// RecipeSource loads recipes and records their use.
type RecipeSource interface {
	ActiveForMenuItems(ctx context.Context, menuItemIDs []id.ID) (map[id.ID]*recipe.Recipe, error)
	TouchLastUsed(ctx context.Context, recipeIDs []id.ID) error
}

// ItemReader loads ingredient items.
type ItemReader interface {
	GetActive(ctx context.Context, itemID id.ID) (*item.Item, error)
}

// WarehouseResolver resolves ingredient and item warehouses.
type WarehouseResolver interface {
	Resolve(ctx context.Context, warehouseID *id.ID) (*warehouse.Warehouse, error)
}

// MovementIndex finds movements already written for an order.
type MovementIndex interface {
	HasMovement(ctx context.Context, movementType stock.MovementType, reference string, itemID, warehouseID id.ID) (bool, error)
}

// Pipeline consumes recipe ingredients for created orders.
type Pipeline struct {
	recipes    RecipeSource
	items      ItemReader
	warehouses WarehouseResolver
	ledger     *stock.Ledger
	movements  MovementIndex
	txManager  tx.Manager
	actions    audit.Recorder
	locker     Locker
}

// NewPipeline creates a pipeline. actions and locker may be nil.
func NewPipeline(
	recipes RecipeSource,
	items ItemReader,
	warehouses WarehouseResolver,
	ledger *stock.Ledger,
	movements MovementIndex,
	txManager tx.Manager,
	actions audit.Recorder,
	locker Locker,
) *Pipeline {
	if actions == nil {
		actions = audit.NopRecorder{}
	}
	return &Pipeline{
		recipes:    recipes,
		items:      items,
		warehouses: warehouses,
		ledger:     ledger,
		movements:  movements,
		txManager:  txManager,
		actions:    actions,
		locker:     locker,
	}
}

// Apply deducts the order's ingredients. It never returns an error: failures are
// logged, the affected bucket is skipped and Result.Retry is set when a retry could
// complete the work.
func (p *Pipeline) Apply(ctx context.Context, order OrderCreated) (result Result) {
	result.OrderID = order.OrderID

	ctx, span := tracer.Start(ctx, "usage.apply", trace.WithAttributes(
		attribute.String("order.id", order.OrderID),
		attribute.Int("order.lines", len(order.Lines)),
	))
	defer span.End()

	if order.ActorID != "" && appctx.GetUser(ctx) == nil {
		ctx = appctx.WithUser(ctx, &appctx.UserContext{UserID: order.ActorID})
	}
	log := logger.FromContext(ctx).WithComponent("usage").With("order_id", order.OrderID)

	defer func() {
		if r := recover(); r != nil {
			log.Errorw("usage pipeline panicked", "panic", r)
			result.Retry = true
		}
	}()

	if err := order.Validate(); err != nil {
		log.Warnw("invalid order dropped", "error", err)
		return result
	}
	if len(order.Lines) == 0 {
		return result
	}

	if p.locker != nil {
		release, err := p.locker.Lock(ctx, "usage:order:"+order.OrderID)
		if err != nil {
			log.Warnw("order lock not obtained", "error", err)
			result.Retry = true
			return result
		}
		defer release()
	}

	menuItems := make([]id.ID, 0, len(order.Lines))
	seen := make(map[id.ID]struct{}, len(order.Lines))
	for _, l := range order.Lines {
		if _, ok := seen[l.MenuItemID]; !ok {
			seen[l.MenuItemID] = struct{}{}
			menuItems = append(menuItems, l.MenuItemID)
		}
	}

	recipes, err := p.recipes.ActiveForMenuItems(ctx, menuItems)
	if err != nil {
		log.Errorw("load recipes", "error", err)
		result.Retry = true
		return result
	}

	plan := BuildPlan(order, recipes)
	result.LinesSkipped = plan.LinesSkipped
	if len(plan.Demands) == 0 {
		return result
	}

	items := p.loadItems(ctx, plan.Demands, log)
	buckets, unresolved := Aggregate(plan.Demands, func(d Demand) (id.ID, bool) {
		it, ok := items[d.ItemID]
		if !ok {
			return id.Nil(), false
		}
		wh, err := p.resolveWarehouse(ctx, d.Override, it)
		if err != nil {
			log.Warnw("ingredient warehouse unresolved", "item_id", d.ItemID, "error", err)
			if !apperror.IsAppError(err) {
				result.Retry = true
			}
			return id.Nil(), false
		}
		return wh, true
	})
	for _, d := range unresolved {
		reason := SkipNoWarehouse
		if _, ok := items[d.ItemID]; !ok {
			reason = SkipItemInactive
		}
		result.Buckets = append(result.Buckets, BucketResult{ItemID: d.ItemID, Requested: d.Required, Skipped: reason})
	}

	// touched holds items moved by this run; recount also covers buckets a
	// previous delivery committed, whose recalc may not have happened.
	touched := make(map[id.ID]struct{})
	recount := make(map[id.ID]struct{})
	for _, b := range buckets {
		br := p.applyBucket(ctx, order, items[b.ItemID], b, log)
		switch {
		case br.Skipped == SkipFailed:
			result.Retry = true
		case br.Skipped == SkipAlreadyApplied:
			recount[b.ItemID] = struct{}{}
		}
		if br.MovementID != nil {
			touched[b.ItemID] = struct{}{}
			recount[b.ItemID] = struct{}{}
			if br.Shortage.IsPositive() {
				result.ShortageBucket++
			}
		}
		result.Buckets = append(result.Buckets, br)
	}

	for _, itemID := range DistinctItems(buckets) {
		if _, ok := recount[itemID]; !ok {
			continue
		}
		if err := p.recalc(ctx, items[itemID]); err != nil {
			log.Errorw("recalc item totals", "item_id", itemID, "error", err)
			result.Retry = true
		}
	}

	if len(touched) > 0 {
		if err := p.recordAction(ctx, order, &result); err != nil {
			log.Errorw("record usage action", "error", err)
		}
		if err := p.recipes.TouchLastUsed(ctx, plan.RecipeIDs); err != nil {
			log.Warnw("touch recipe last used", "error", err)
		}
		result.RecipesUsed = plan.RecipeIDs
	}

	span.SetAttributes(
		attribute.Int("usage.buckets", len(result.Buckets)),
		attribute.Int("usage.applied", result.Applied()),
		attribute.Bool("usage.retry", result.Retry),
	)
	log.Infow("order usage applied",
		"buckets", len(result.Buckets),
		"applied", result.Applied(),
		"shortage_buckets", result.ShortageBucket,
		"lines_skipped", result.LinesSkipped,
		"retry", result.Retry,
	)
	return result
}

func (p *Pipeline) loadItems(ctx context.Context, demands []Demand, log *logger.Logger) map[id.ID]*item.Item {
	out := make(map[id.ID]*item.Item)
	missing := make(map[id.ID]struct{})
	for _, d := range demands {
		if _, ok := out[d.ItemID]; ok {
			continue
		}
		if _, ok := missing[d.ItemID]; ok {
			continue
		}
		it, err := p.items.GetActive(ctx, d.ItemID)
		if err != nil {
			log.Warnw("ingredient item unavailable", "item_id", d.ItemID, "error", err)
			missing[d.ItemID] = struct{}{}
			continue
		}
		out[d.ItemID] = it
	}
	return out
}

// resolveWarehouse picks the ingredient override, then the item's default warehouse,
// then the registry default.
func (p *Pipeline) resolveWarehouse(ctx context.Context, override *id.ID, it *item.Item) (id.ID, error) {
	for _, candidate := range []*id.ID{override, it.DefaultWarehouseID} {
		if candidate == nil || id.IsNil(*candidate) {
			continue
		}
		wh, err := p.warehouses.Resolve(ctx, candidate)
		if err == nil {
			return wh.ID, nil
		}
		if !apperror.IsNotFound(err) {
			return id.Nil(), err
		}
	}
	wh, err := p.warehouses.Resolve(ctx, nil)
	if err != nil {
		return id.Nil(), err
	}
	return wh.ID, nil
}

// applyBucket deducts one bucket in its own transaction.
func (p *Pipeline) applyBucket(ctx context.Context, order OrderCreated, it *item.Item, b *Bucket, log *logger.Logger) BucketResult {
	br := BucketResult{ItemID: b.ItemID, WarehouseID: b.WarehouseID, Requested: b.Required}
	if it == nil {
		br.Skipped = SkipItemInactive
		return br
	}

	var applied *stock.Applied
	err := p.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		done, err := p.movements.HasMovement(ctx, stock.MovementUsage, order.OrderID, b.ItemID, b.WarehouseID)
		if err != nil {
			return err
		}
		if done {
			br.Skipped = SkipAlreadyApplied
			return nil
		}

		sources := make([]any, 0, len(b.Sources))
		for _, s := range b.Sources {
			sources = append(sources, map[string]any{
				"menuItemId": s.MenuItemID.String(),
				"menuItem":   s.MenuItem,
				"portion":    s.Portion,
				"qty":        s.Qty,
			})
		}

		applied, err = p.ledger.Apply(ctx, stock.Mutation{
			Item:        it,
			WarehouseID: b.WarehouseID,
			Type:        stock.MovementUsage,
			Policy:      stock.PolicyClamp,
			Delta:       -b.Required,
			Reason:      "order usage",
			Reference:   order.OrderID,
			Metadata:    entity.Metadata{"orderId": order.OrderID, "sources": sources},
			SkipTotals:  true,
		})
		return err
	})
	if err != nil {
		log.Errorw("usage bucket failed", "item_id", b.ItemID, "warehouse_id", b.WarehouseID, "error", err)
		br.Skipped = SkipFailed
		return br
	}
	if applied == nil {
		return br
	}

	p.ledger.Notify(ctx, applied)
	br.Deducted = applied.Deducted
	br.Shortage = applied.Shortage
	br.MovementID = &applied.Movement.ID
	if applied.Shortage.IsPositive() {
		log.Warnw("usage shortage",
			"item_id", b.ItemID,
			"warehouse_id", b.WarehouseID,
			"requested", applied.Requested,
			"shortage", applied.Shortage,
		)
	}
	return br
}

// recalc refreshes the item total once per order and raises the low-stock event.
func (p *Pipeline) recalc(ctx context.Context, it *item.Item) error {
	var low *events.Event
	err := p.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := p.ledger.RecalcItemTotals(ctx, it); err != nil {
			return err
		}
		if ev, ok := p.ledger.LowStockEvent(it); ok {
			if err := p.ledger.Publish(ctx, ev); err != nil {
				return err
			}
			low = &ev
		}
		return nil
	})
	if err != nil {
		return err
	}
	if low != nil {
		p.ledger.NotifyEvents(ctx, *low)
	}
	return nil
}

func (p *Pipeline) recordAction(ctx context.Context, order OrderCreated, result *Result) error {
	buckets := make([]map[string]any, 0, len(result.Buckets))
	for _, b := range result.Buckets {
		entry := map[string]any{
			"itemId":    b.ItemID.String(),
			"requested": b.Requested.String(),
		}
		if !id.IsNil(b.WarehouseID) {
			entry["warehouseId"] = b.WarehouseID.String()
		}
		if b.MovementID != nil {
			entry["deducted"] = b.Deducted.String()
			entry["shortage"] = b.Shortage.String()
		}
		if b.Skipped != "" {
			entry["skipped"] = b.Skipped
		}
		buckets = append(buckets, entry)
	}

	return p.actions.Record(ctx, audit.Entry{
		Action:     audit.ActionRecipeUsage,
		EntityType: "order",
		EntityID:   order.OrderID,
		ActorID:    appctx.ActorID(ctx),
		Summary: fmt.Sprintf("order %s consumed %d buckets (%d with shortage)",
			order.OrderID, result.Applied(), result.ShortageBucket),
		Details: map[string]any{"buckets": buckets, "linesSkipped": result.LinesSkipped},
	})
}
