package stock

import (
	"context"
	"fmt"
	"time"

	"restopos/internal/core/apperror"
	appctx "restopos/internal/core/context"
	"restopos/internal/core/entity"
	"restopos/internal/core/events"
	"restopos/internal/core/id"
	"restopos/internal/core/types"
	"restopos/internal/domain/catalogs/item"
	"restopos/pkg/logger"
)

// Mutation describes one change to one stock row.
type Mutation struct {
	Item        *item.Item
	WarehouseID id.ID
	Type        MovementType
	Policy      Policy

	// Delta is the signed change for PolicyReject and the (negative) requested
	// deduction for PolicyClamp.
	Delta types.Quantity
	// Counted is the target quantity for PolicyAbsolute.
	Counted types.Quantity

	Seed Seed

	// UnitCost defaults to the item's current cost.
	UnitCost *types.Money

	Reason    string
	Reference string
	Metadata  entity.Metadata

	SupplierID        *id.ID
	SourceWarehouseID *id.ID
	TargetWarehouseID *id.ID

	// SkipTotals defers RecalcItemTotals to the caller.
	SkipTotals bool
}

// Applied is the outcome of a mutation.
type Applied struct {
	// Movement is nil when a count matched the current quantity.
	Movement *Movement

	ItemID      id.ID
	WarehouseID id.ID

	Before types.Quantity
	After  types.Quantity

	Requested types.Quantity
	Deducted  types.Quantity
	Shortage  types.Quantity

	// ItemTotal is zero when totals were skipped.
	ItemTotal types.Quantity

	events []events.Event
}

// Ledger applies mutations: get-or-create the row, one atomic update, one movement,
// then the item total. It must run inside a transaction owned by the caller.
type Ledger struct {
	repo      Repository
	publisher events.Publisher
	notifier  events.Notifier
	now       func() time.Time
}

// NewLedger creates a ledger. publisher and notifier may be nil.
func NewLedger(repo Repository, publisher events.Publisher, notifier events.Notifier) *Ledger {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if notifier == nil {
		notifier = events.NopNotifier{}
	}
	return &Ledger{
		repo:      repo,
		publisher: publisher,
		notifier:  notifier,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Apply performs the mutation.
func (l *Ledger) Apply(ctx context.Context, m Mutation) (*Applied, error) {
	if m.Item == nil {
		return nil, apperror.NewValidation("item is required")
	}
	if !m.Type.IsValid() {
		return nil, apperror.NewInvalidInput("type", "unknown movement type")
	}

	if _, err := l.repo.GetOrCreateStock(ctx, m.Item.ID, m.WarehouseID, m.Seed); err != nil {
		return nil, fmt.Errorf("get or create stock: %w", err)
	}

	res := &Applied{ItemID: m.Item.ID, WarehouseID: m.WarehouseID}
	metadata := m.Metadata.Clone()

	switch m.Policy {
	case PolicyReject:
		if m.Delta.IsZero() {
			return nil, apperror.NewInvalidInput("quantity", "quantity must not be zero")
		}
		after, ok, err := l.repo.Increment(ctx, m.Item.ID, m.WarehouseID, m.Delta)
		if err != nil {
			return nil, fmt.Errorf("update stock: %w", err)
		}
		if !ok {
			return nil, l.insufficient(ctx, m)
		}
		res.Before = after - m.Delta
		res.After = after

	case PolicyClamp:
		requested := m.Delta.Abs()
		before, after, err := l.repo.DecrementClamped(ctx, m.Item.ID, m.WarehouseID, requested)
		if err != nil {
			return nil, fmt.Errorf("deduct stock: %w", err)
		}
		res.Before = before
		res.After = after
		res.Requested = requested
		res.Deducted = before - after
		res.Shortage = requested - res.Deducted
		metadata.Set("requested", requested.String())
		metadata.Set("shortage", res.Shortage.String())

	case PolicyAbsolute:
		if m.Counted.IsNegative() {
			return nil, apperror.NewInvalidInput("countedQuantity", "counted quantity must not be negative")
		}
		before, err := l.repo.SetQuantity(ctx, m.Item.ID, m.WarehouseID, m.Counted, l.now())
		if err != nil {
			return nil, fmt.Errorf("set stock: %w", err)
		}
		res.Before = before
		res.After = m.Counted
		if before == m.Counted {
			return res, nil
		}
		metadata.Set("counted", m.Counted.String())
		metadata.Set("previous", before.String())

	default:
		return nil, fmt.Errorf("unknown stock policy %d", m.Policy)
	}

	delta := res.After - res.Before
	unitCost := m.Item.Cost
	if m.UnitCost != nil {
		unitCost = *m.UnitCost
	}

	mv := &Movement{
		ID:                id.New(),
		ItemID:            m.Item.ID,
		WarehouseID:       m.WarehouseID,
		Type:              m.Type,
		Delta:             delta,
		Quantity:          delta.Abs(),
		BalanceAfter:      res.After,
		Unit:              m.Item.Unit,
		SourceWarehouseID: m.SourceWarehouseID,
		TargetWarehouseID: m.TargetWarehouseID,
		UnitCost:          unitCost,
		TotalCost:         types.LineTotal(delta.Abs(), unitCost),
		Reason:            m.Reason,
		Reference:         m.Reference,
		Metadata:          metadata,
		SupplierID:        m.SupplierID,
		CreatedBy:         appctx.ActorID(ctx),
		CreatedAt:         l.now(),
	}
	if err := l.repo.CreateMovement(ctx, mv); err != nil {
		return nil, fmt.Errorf("create movement: %w", err)
	}
	res.Movement = mv

	changed := events.Event{
		AggregateType: events.AggregateItem,
		AggregateID:   m.Item.ID,
		Type:          events.TypeStockChanged,
		Payload: events.StockChanged{
			MovementID:   mv.ID,
			ItemID:       mv.ItemID,
			WarehouseID:  mv.WarehouseID,
			MovementType: string(mv.Type),
			Delta:        mv.Delta.String(),
			BalanceAfter: mv.BalanceAfter.String(),
			Reference:    mv.Reference,
			OccurredAt:   mv.CreatedAt,
		},
	}

	if !m.SkipTotals {
		total, err := l.RecalcItemTotals(ctx, m.Item)
		if err != nil {
			return nil, err
		}
		res.ItemTotal = total
		payload := changed.Payload.(events.StockChanged)
		payload.ItemTotal = total.String()
		changed.Payload = payload
		res.events = append(res.events, l.lowStockEvents(m.Item, total, delta)...)
	}

	res.events = append([]events.Event{changed}, res.events...)
	if err := l.publisher.PublishBatch(ctx, res.events); err != nil {
		return nil, fmt.Errorf("publish stock events: %w", err)
	}

	return res, nil
}

// RecalcItemTotals persists the item's total stock and updates the in-memory copy.
func (l *Ledger) RecalcItemTotals(ctx context.Context, it *item.Item) (types.Quantity, error) {
	total, err := l.repo.RecalcItemTotals(ctx, it.ID)
	if err != nil {
		return 0, fmt.Errorf("recalc item totals: %w", err)
	}
	it.CurrentStock = total
	return total, nil
}

// lowStockEvents returns the low-stock event for an item whose total just dropped to
// or below its par level.
func (l *Ledger) lowStockEvents(it *item.Item, total, delta types.Quantity) []events.Event {
	if !delta.IsNegative() {
		return nil
	}
	probe := *it
	probe.CurrentStock = total
	if !probe.IsLowStock() {
		return nil
	}
	return []events.Event{{
		AggregateType: events.AggregateItem,
		AggregateID:   it.ID,
		Type:          events.TypeLowStock,
		Payload: events.LowStock{
			ItemID:       it.ID,
			SKU:          it.Code,
			Name:         it.Name,
			CurrentStock: total.String(),
			ParLevel:     it.ParLevel.String(),
		},
	}}
}

// LowStockEvent builds a low-stock event after a deferred total recalculation.
func (l *Ledger) LowStockEvent(it *item.Item) (events.Event, bool) {
	evs := l.lowStockEvents(it, it.CurrentStock, -1)
	if len(evs) == 0 {
		return events.Event{}, false
	}
	return evs[0], true
}

// Notify pushes the events of committed mutations to live subscribers.
// Call it only after the surrounding transaction has committed.
func (l *Ledger) Notify(ctx context.Context, applied ...*Applied) {
	for _, a := range applied {
		if a == nil {
			continue
		}
		for _, ev := range a.events {
			l.notifier.Notify(ctx, ev)
		}
	}
}

// NotifyEvents pushes events produced outside Apply, after commit.
func (l *Ledger) NotifyEvents(ctx context.Context, evs ...events.Event) {
	for _, ev := range evs {
		l.notifier.Notify(ctx, ev)
	}
}

// Publish writes extra events in the caller's transaction.
func (l *Ledger) Publish(ctx context.Context, evs ...events.Event) error {
	if len(evs) == 0 {
		return nil
	}
	return l.publisher.PublishBatch(ctx, evs)
}

func (l *Ledger) insufficient(ctx context.Context, m Mutation) error {
	var available types.Quantity
	if row, err := l.repo.GetStock(ctx, m.Item.ID, m.WarehouseID); err == nil {
		available = row.Quantity
	} else {
		logger.Warn(ctx, "read stock after rejected update", "item_id", m.Item.ID, "error", err)
	}
	return apperror.NewInsufficientStock(
		m.Item.ID.String(),
		m.WarehouseID.String(),
		m.Delta.Abs().String(),
		available.String(),
	).WithDetail("sku", m.Item.Code)
}
