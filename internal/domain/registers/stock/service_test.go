package stock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restopos/internal/core/apperror"
	"restopos/internal/core/entity"
	"restopos/internal/core/events"
	"restopos/internal/core/id"
	"restopos/internal/core/numerator"
	"restopos/internal/core/tx"
	"restopos/internal/core/types"
	"restopos/internal/domain/audit"
)

type recordingActions struct {
	entries []audit.Entry
}

func (r *recordingActions) Record(_ context.Context, e audit.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

type fixture struct {
	svc        *Service
	store      *memStore
	items      catalog
	warehouses *warehouses
	publisher  *recordingPublisher
	notifier   *recordingNotifier
	actions    *recordingActions
}

func newFixture(codes ...string) *fixture {
	if len(codes) == 0 {
		codes = []string{"MAIN"}
	}
	f := &fixture{
		store:      newMemStore(),
		warehouses: newWarehouses(codes...),
		publisher:  &recordingPublisher{},
		notifier:   &recordingNotifier{},
		actions:    &recordingActions{},
	}
	f.items = catalog{store: f.store}
	ledger := NewLedger(f.store, f.publisher, f.notifier)
	f.svc = NewService(f.store, ledger, tx.Nop{}, f.items, f.warehouses, f.actions)
	return f
}

func qty(s string) types.Quantity {
	q, err := types.ParseQuantity(s)
	if err != nil {
		panic(err)
	}
	return q
}

func TestAdjustRejectsNegativeResult(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	it := f.items.add("TOMATO", "Tomato")
	it.ParLevel = qty("5")

	_, err := f.svc.Adjust(ctx, AdjustCommand{ItemID: it.ID, Type: MovementIncoming, Quantity: qty("10")})
	require.NoError(t, err)
	assert.Equal(t, qty("10"), f.store.items[it.ID].CurrentStock)

	_, err = f.svc.Adjust(ctx, AdjustCommand{ItemID: it.ID, Type: MovementUsage, Quantity: qty("-15")})
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))
	assert.Equal(t, 400, apperror.GetHTTPStatus(err))
	assert.Equal(t, qty("10"), f.store.stockOf(it.ID, f.warehouses.main.ID))
	assert.Len(t, f.store.movements, 1)

	applied, err := f.svc.Adjust(ctx, AdjustCommand{ItemID: it.ID, Type: MovementUsage, Quantity: qty("-8")})
	require.NoError(t, err)
	assert.Equal(t, qty("2"), f.store.stockOf(it.ID, f.warehouses.main.ID))
	assert.Equal(t, qty("-8"), applied.Movement.Delta)
	assert.Equal(t, qty("8"), applied.Movement.Quantity)
	assert.Equal(t, qty("2"), applied.Movement.BalanceAfter)
	assert.Equal(t, qty("2"), f.store.items[it.ID].CurrentStock)
	assert.Len(t, f.actions.entries, 2)
}

func TestAdjustSignRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	it := f.items.add("RICE", "Rice")

	applied, err := f.svc.Adjust(ctx, AdjustCommand{ItemID: it.ID, Type: MovementIncoming, Quantity: qty("-4")})
	require.NoError(t, err)
	assert.Equal(t, qty("4"), applied.Movement.Delta, "incoming is forced positive")

	applied, err = f.svc.Adjust(ctx, AdjustCommand{ItemID: it.ID, Type: MovementWaste, Quantity: qty("1")})
	require.NoError(t, err)
	assert.Equal(t, qty("-1"), applied.Movement.Delta, "waste is forced negative")

	applied, err = f.svc.Adjust(ctx, AdjustCommand{ItemID: it.ID, Type: MovementAdjustment, Quantity: qty("-2.5")})
	require.NoError(t, err)
	assert.Equal(t, qty("-2.5"), applied.Movement.Delta, "adjustment keeps its sign")
	assert.Equal(t, qty("0.5"), applied.After)

	_, err = f.svc.Adjust(ctx, AdjustCommand{ItemID: it.ID, Type: MovementTransferIn, Quantity: qty("1")})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))

	_, err = f.svc.Adjust(ctx, AdjustCommand{ItemID: it.ID, Type: MovementAdjustment})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
}

func TestAdjustUnknownWarehouse(t *testing.T) {
	f := newFixture()
	it := f.items.add("SALT", "Salt")
	missing := id.New()

	_, err := f.svc.Adjust(context.Background(), AdjustCommand{
		ItemID: it.ID, WarehouseID: &missing, Type: MovementIncoming, Quantity: qty("1"),
	})
	assert.True(t, apperror.IsNotFound(err))
	assert.Empty(t, f.store.movements)
}

func TestAdjustUsesItemDefaultWarehouse(t *testing.T) {
	f := newFixture("MAIN", "BAR")
	bar := f.warehouses.byCode("BAR")
	it := f.items.add("LIME", "Lime")
	it.DefaultWarehouseID = &bar.ID

	applied, err := f.svc.Adjust(context.Background(), AdjustCommand{ItemID: it.ID, Type: MovementIncoming, Quantity: qty("3")})
	require.NoError(t, err)
	assert.Equal(t, bar.ID, applied.WarehouseID)
}

func TestTransferCreatesTwoMovements(t *testing.T) {
	ctx := context.Background()
	f := newFixture("MAIN", "KITCHEN")
	main, kitchen := f.warehouses.main, f.warehouses.byCode("KITCHEN")
	it := f.items.add("BEEF", "Beef")

	_, err := f.svc.Adjust(ctx, AdjustCommand{ItemID: it.ID, Type: MovementIncoming, Quantity: qty("10")})
	require.NoError(t, err)

	res, err := f.svc.Transfer(ctx, TransferCommand{
		ItemID: it.ID, FromWarehouseID: &main.ID, ToWarehouseID: &kitchen.ID, Quantity: qty("4"),
	})
	require.NoError(t, err)

	assert.Equal(t, qty("6"), f.store.stockOf(it.ID, main.ID))
	assert.Equal(t, qty("4"), f.store.stockOf(it.ID, kitchen.ID))

	out, in := res.Out.Movement, res.In.Movement
	assert.Equal(t, MovementTransferOut, out.Type)
	assert.Equal(t, MovementTransferIn, in.Type)
	assert.Equal(t, out.Quantity, in.Quantity)
	assert.Equal(t, qty("-4"), out.Delta)
	assert.Equal(t, qty("4"), in.Delta)
	assert.Equal(t, main.ID, *out.SourceWarehouseID)
	assert.Equal(t, kitchen.ID, *out.TargetWarehouseID)
	assert.Equal(t, main.ID, *in.SourceWarehouseID)
	assert.Equal(t, kitchen.ID, *in.TargetWarehouseID)
	assert.Len(t, f.store.movements, 3)
	assert.Equal(t, qty("10"), f.store.items[it.ID].CurrentStock)
	assert.Equal(t, qty("10"), res.Out.ItemTotal)
}

func TestTransferValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture("MAIN", "KITCHEN")
	main, kitchen := f.warehouses.main, f.warehouses.byCode("KITCHEN")
	it := f.items.add("BEEF", "Beef")

	_, err := f.svc.Transfer(ctx, TransferCommand{ItemID: it.ID, FromWarehouseID: &main.ID, ToWarehouseID: &main.ID, Quantity: qty("1")})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))

	_, err = f.svc.Transfer(ctx, TransferCommand{ItemID: it.ID, FromWarehouseID: &main.ID, ToWarehouseID: &kitchen.ID, Quantity: qty("1")})
	assert.True(t, apperror.IsInsufficientStock(err))
	assert.Empty(t, f.store.movements)

	_, err = f.svc.Transfer(ctx, TransferCommand{ItemID: it.ID, FromWarehouseID: &main.ID, ToWarehouseID: &kitchen.ID})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
}

func TestCycleCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	it := f.items.add("FLOUR", "Flour")

	_, err := f.svc.Adjust(ctx, AdjustCommand{ItemID: it.ID, Type: MovementIncoming, Quantity: qty("12")})
	require.NoError(t, err)

	res, err := f.svc.CycleCount(ctx, CountCommand{Lines: []CountLine{{ItemID: it.ID, Counted: qty("7")}}})
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	mv := res.Lines[0].Movement
	require.NotNil(t, mv)
	assert.Equal(t, MovementCountAdjustment, mv.Type)
	assert.Equal(t, qty("-5"), mv.Delta)
	assert.Equal(t, qty("7"), mv.BalanceAfter)
	assert.Len(t, f.store.movements, 2)

	res, err = f.svc.CycleCount(ctx, CountCommand{Lines: []CountLine{{ItemID: it.ID, Counted: qty("7")}}})
	require.NoError(t, err)
	assert.Nil(t, res.Lines[0].Movement)
	assert.Len(t, f.store.movements, 2, "unchanged count creates no movement")

	row, err := f.store.GetStock(ctx, it.ID, f.warehouses.main.ID)
	require.NoError(t, err)
	assert.NotNil(t, row.LastCountDate)

	_, err = f.svc.CycleCount(ctx, CountCommand{Lines: []CountLine{{ItemID: it.ID, Counted: qty("-1")}}})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
}

func TestCycleCountNumbersReference(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	it := f.items.add("SALT", "Salt")

	calls := 0
	f.svc.WithNumbering(numerator.GeneratorFunc(func(_ context.Context, cfg numerator.Config, at time.Time) (string, error) {
		calls++
		return numerator.Format(cfg, at, int64(calls)), nil
	}))

	res, err := f.svc.CycleCount(ctx, CountCommand{Lines: []CountLine{{ItemID: it.ID, Counted: qty("3")}}})
	require.NoError(t, err)
	assert.Regexp(t, `^CNT-\d{4}-00001$`, res.Reference)
	assert.Equal(t, res.Reference, res.Lines[0].Movement.Reference)

	res, err = f.svc.CycleCount(ctx, CountCommand{Reference: " SHEET-7 ", Lines: []CountLine{{ItemID: it.ID, Counted: qty("2")}}})
	require.NoError(t, err)
	assert.Equal(t, "SHEET-7", res.Reference)
	assert.Equal(t, 1, calls)
}

func TestItemTotalMatchesStockRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture("MAIN", "BAR", "KITCHEN")
	main, bar, kitchen := f.warehouses.main, f.warehouses.byCode("BAR"), f.warehouses.byCode("KITCHEN")
	it := f.items.add("GIN", "Gin")

	steps := []func() error{
		func() error {
			_, err := f.svc.Adjust(ctx, AdjustCommand{ItemID: it.ID, Type: MovementIncoming, Quantity: qty("20")})
			return err
		},
		func() error {
			_, err := f.svc.Transfer(ctx, TransferCommand{ItemID: it.ID, FromWarehouseID: &main.ID, ToWarehouseID: &bar.ID, Quantity: qty("7.25")})
			return err
		},
		func() error {
			_, err := f.svc.Adjust(ctx, AdjustCommand{ItemID: it.ID, WarehouseID: &bar.ID, Type: MovementWaste, Quantity: qty("0.25")})
			return err
		},
		func() error {
			_, err := f.svc.CycleCount(ctx, CountCommand{WarehouseID: &kitchen.ID, Lines: []CountLine{{ItemID: it.ID, Counted: qty("3")}}})
			return err
		},
	}
	for _, step := range steps {
		require.NoError(t, step())

		var sum types.Quantity
		for _, wh := range []id.ID{main.ID, bar.ID, kitchen.ID} {
			q := f.store.stockOf(it.ID, wh)
			assert.False(t, q.IsNegative())
			sum += q
		}
		assert.Equal(t, sum, f.store.items[it.ID].CurrentStock)
	}

	for _, m := range f.store.movements {
		assert.Equal(t, m.Delta.Abs(), m.Quantity)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	a := f.items.add("A-1", "Apples")
	b := f.items.add("B-1", "Butter")

	_, err := f.svc.Adjust(ctx, AdjustCommand{ItemID: a.ID, Type: MovementIncoming, Quantity: qty("4.5")})
	require.NoError(t, err)
	_, err = f.svc.Adjust(ctx, AdjustCommand{ItemID: b.ID, Type: MovementIncoming, Quantity: qty("2")})
	require.NoError(t, err)

	rows, err := f.svc.Export(ctx, nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	_, err = f.svc.Adjust(ctx, AdjustCommand{ItemID: a.ID, Type: MovementUsage, Quantity: qty("1.5")})
	require.NoError(t, err)
	_, err = f.svc.Adjust(ctx, AdjustCommand{ItemID: b.ID, Type: MovementIncoming, Quantity: qty("3")})
	require.NoError(t, err)

	res, err := f.svc.Import(ctx, ImportCommand{Rows: rows})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Adjusted)
	assert.Zero(t, res.ItemsCreated)

	assert.Equal(t, qty("4.5"), f.store.stockOf(a.ID, f.warehouses.main.ID))
	assert.Equal(t, qty("2"), f.store.stockOf(b.ID, f.warehouses.main.ID))

	for _, line := range res.Lines {
		require.NotNil(t, line.Movement)
		switch line.ItemID {
		case a.ID:
			assert.Equal(t, qty("1.5"), line.Movement.Delta)
		case b.ID:
			assert.Equal(t, qty("-3"), line.Movement.Delta)
		}
	}
}

func TestImportCreatesUnknownItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	res, err := f.svc.Import(ctx, ImportCommand{Rows: []Row{
		{Name: "Basil", SKU: "basil", Quantity: qty("1.2"), Unit: "kg", ParLevel: qty("0.5")},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ItemsCreated)

	it, err := f.items.GetBySKU(ctx, "BASIL")
	require.NoError(t, err)
	assert.Equal(t, qty("1.2"), f.store.stockOf(it.ID, f.warehouses.main.ID))

	row, err := f.store.GetStock(ctx, it.ID, f.warehouses.main.ID)
	require.NoError(t, err)
	assert.Equal(t, qty("0.5"), row.ParLevel)

	_, err = f.svc.Import(ctx, ImportCommand{Rows: []Row{{SKU: "X", Quantity: qty("1")}, {SKU: "x", Quantity: qty("2")}}})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
}

func TestSeedAppliesOnInsertOnly(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	itemID, whID := id.New(), id.New()

	first, err := store.GetOrCreateStock(ctx, itemID, whID, Seed{ParLevel: qty("5")})
	require.NoError(t, err)
	assert.Equal(t, qty("5"), first.ParLevel)

	again, err := store.GetOrCreateStock(ctx, itemID, whID, Seed{ParLevel: qty("9")})
	require.NoError(t, err)
	assert.Equal(t, qty("5"), again.ParLevel)
}

func TestLowStockEventsAndNotifications(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	it := f.items.add("CREAM", "Cream")
	it.ParLevel = qty("5")

	_, err := f.svc.Adjust(ctx, AdjustCommand{ItemID: it.ID, Type: MovementIncoming, Quantity: qty("10")})
	require.NoError(t, err)
	assert.Empty(t, f.publisher.ofType(events.TypeLowStock))

	_, err = f.svc.Adjust(ctx, AdjustCommand{ItemID: it.ID, Type: MovementUsage, Quantity: qty("6")})
	require.NoError(t, err)

	low := f.publisher.ofType(events.TypeLowStock)
	require.Len(t, low, 1)
	assert.Equal(t, "4.0000", low[0].Payload.(events.LowStock).CurrentStock)

	assert.Len(t, f.publisher.ofType(events.TypeStockChanged), 2)
	assert.Len(t, f.notifier.notified, len(f.publisher.published))
}

func TestLedgerCopiesCallerMetadata(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	it := f.items.add("EGG", "Eggs")
	wh := f.warehouses.main.ID

	_, err := f.svc.Adjust(ctx, AdjustCommand{ItemID: it.ID, Type: MovementIncoming, Quantity: qty("3")})
	require.NoError(t, err)

	loaded, err := f.items.GetActive(ctx, it.ID)
	require.NoError(t, err)
	meta := entity.Metadata{"order": "order-9"}
	applied, err := f.svc.Ledger().Apply(ctx, Mutation{
		Item:        loaded,
		WarehouseID: wh,
		Type:        MovementUsage,
		Policy:      PolicyClamp,
		Delta:       qty("-5"),
		Reference:   "order-9",
		Metadata:    meta,
	})
	require.NoError(t, err)

	assert.Equal(t, "order-9", applied.Movement.Metadata.GetString("order"))
	assert.Equal(t, "2.0000", applied.Movement.Metadata.GetString("shortage"))
	_, leaked := meta["shortage"]
	assert.False(t, leaked, "ledger wrote into the caller's metadata")
	assert.Len(t, meta, 1)

	meta["order"] = "changed"
	assert.Equal(t, "order-9", applied.Movement.Metadata.GetString("order"))
}

func TestClampedDeductionRecordsShortage(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	it := f.items.add("EGG", "Eggs")
	wh := f.warehouses.main.ID

	_, err := f.svc.Adjust(ctx, AdjustCommand{ItemID: it.ID, Type: MovementIncoming, Quantity: qty("3")})
	require.NoError(t, err)

	loaded, err := f.items.GetActive(ctx, it.ID)
	require.NoError(t, err)
	applied, err := f.svc.Ledger().Apply(ctx, Mutation{
		Item:        loaded,
		WarehouseID: wh,
		Type:        MovementUsage,
		Policy:      PolicyClamp,
		Delta:       qty("-5"),
		Reference:   "order-1",
	})
	require.NoError(t, err)

	assert.Equal(t, qty("3"), applied.Deducted)
	assert.Equal(t, qty("2"), applied.Shortage)
	assert.Equal(t, types.Quantity(0), applied.After)
	assert.Equal(t, qty("-3"), applied.Movement.Delta)
	assert.Equal(t, "2.0000", applied.Movement.Metadata.GetString("shortage"))
	assert.Equal(t, "5.0000", applied.Movement.Metadata.GetString("requested"))

	has, err := f.store.HasMovement(ctx, MovementUsage, "order-1", it.ID, wh)
	require.NoError(t, err)
	assert.True(t, has)
}
