package usage

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restopos/internal/core/apperror"
	"restopos/internal/core/events"
	"restopos/internal/core/id"
	"restopos/internal/core/tx"
	"restopos/internal/core/types"
	"restopos/internal/domain/audit"
	"restopos/internal/domain/catalogs/recipe"
	"restopos/internal/domain/registers/stock"
)

type actionLog struct{ entries []audit.Entry }

func (a *actionLog) Record(_ context.Context, e audit.Entry) error {
	a.entries = append(a.entries, e)
	return nil
}

type env struct {
	pipeline *Pipeline
	stock    *stockRepo
	items    itemMap
	registry *registry
	recipes  *recipeBook
	actions  *actionLog
	events   *capturePublisher
}

func newEnv(locker Locker) *env {
	e := &env{
		stock:    newStockRepo(),
		items:    itemMap{},
		registry: newRegistry("MAIN", "KITCHEN", "BAR"),
		recipes:  &recipeBook{},
		actions:  &actionLog{},
		events:   &capturePublisher{},
	}
	ledger := stock.NewLedger(e.stock, e.events, nil)
	e.pipeline = NewPipeline(e.recipes, e.items, e.registry, ledger, e.stock, tx.Nop{}, e.actions, locker)
	return e
}

func q(s string) types.Quantity {
	v, err := types.ParseQuantity(s)
	if err != nil {
		panic(err)
	}
	return v
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ing(itemID id.ID, quantity, waste string) recipe.Ingredient {
	return recipe.Ingredient{ItemID: itemID, Quantity: q(quantity), WastePercent: dec(waste), Unit: "kg"}
}

func TestPlanRequiredQuantity(t *testing.T) {
	book := &recipeBook{}
	cheese := id.New()
	menuItem, _ := book.add("PIZZA", recipe.Portions{
		{Key: "standard", Multiplier: dec("1")},
		{Key: "large", Multiplier: dec("1.5")},
	}, ing(cheese, "2", "10"))

	recipes, err := book.ActiveForMenuItems(context.Background(), []id.ID{menuItem})
	require.NoError(t, err)

	plan := BuildPlan(OrderCreated{OrderID: "o-1", Lines: []OrderLine{
		{MenuItemID: menuItem, Qty: dec("3"), PortionKey: "large"},
	}}, recipes)

	require.Len(t, plan.Demands, 1)
	assert.Equal(t, q("9.9"), plan.Demands[0].Required)
	assert.Equal(t, "large", plan.Demands[0].Source.Portion)
}

func TestSharedIngredientProducesOneMovement(t *testing.T) {
	ctx := context.Background()
	e := newEnv(nil)
	cheese := e.items.add("CHEESE")
	dough := e.items.add("DOUGH")
	main := e.registry.def.ID
	e.stock.set(cheese.ID, main, q("10"))
	e.stock.set(dough.ID, main, q("10"))

	pizza, _ := e.recipes.add("PIZZA", nil, ing(cheese.ID, "0.2", "0"), ing(dough.ID, "0.3", "0"))
	toast, _ := e.recipes.add("TOAST", nil, ing(cheese.ID, "0.05", "0"))

	res := e.pipeline.Apply(ctx, OrderCreated{OrderID: "order-7", Lines: []OrderLine{
		{MenuItemID: pizza, Qty: dec("2")},
		{MenuItemID: toast, Qty: dec("1")},
	}})

	assert.False(t, res.Retry)
	assert.Equal(t, 2, res.Applied())

	usage := e.stock.usage()
	require.Len(t, usage, 2)
	var cheeseMoves []*stock.Movement
	for _, m := range usage {
		if m.ItemID == cheese.ID {
			cheeseMoves = append(cheeseMoves, m)
		}
	}
	require.Len(t, cheeseMoves, 1)
	assert.Equal(t, q("-0.45"), cheeseMoves[0].Delta)
	assert.Equal(t, "order-7", cheeseMoves[0].Reference)
	assert.Equal(t, "order-7", cheeseMoves[0].Metadata.GetString("orderId"))
	sources, ok := cheeseMoves[0].Metadata["sources"].([]any)
	require.True(t, ok)
	assert.Len(t, sources, 2)

	assert.Equal(t, q("9.55"), e.stock.get(cheese.ID, main))
	assert.Equal(t, q("9.4"), e.stock.get(dough.ID, main))

	assert.Equal(t, 1, e.stock.recalcs[cheese.ID], "totals are recomputed once per item")
	assert.Equal(t, 1, e.stock.recalcs[dough.ID])
	assert.Equal(t, q("9.55"), e.stock.totals[cheese.ID])

	require.Len(t, e.actions.entries, 1)
	assert.Equal(t, audit.ActionRecipeUsage, e.actions.entries[0].Action)
	assert.ElementsMatch(t, res.RecipesUsed, e.recipes.touched)
	assert.Len(t, e.recipes.touched, 2)
}

func TestShortageIsClampedNotRejected(t *testing.T) {
	ctx := context.Background()
	e := newEnv(nil)
	milk := e.items.add("MILK")
	main := e.registry.def.ID
	e.stock.set(milk.ID, main, q("3"))

	latte, _ := e.recipes.add("LATTE", nil, ing(milk.ID, "1", "0"))

	res := e.pipeline.Apply(ctx, OrderCreated{OrderID: "o-short", Lines: []OrderLine{{MenuItemID: latte, Qty: dec("5")}}})
	assert.False(t, res.Retry)
	require.Len(t, res.Buckets, 1)
	assert.Equal(t, q("3"), res.Buckets[0].Deducted)
	assert.Equal(t, q("2"), res.Buckets[0].Shortage)
	assert.Equal(t, 1, res.ShortageBucket)

	assert.Equal(t, types.Quantity(0), e.stock.get(milk.ID, main))
	mv := e.stock.usage()[0]
	assert.Equal(t, q("-3"), mv.Delta)
	assert.Equal(t, types.Quantity(0), mv.BalanceAfter)
	assert.Equal(t, "2.0000", mv.Metadata.GetString("shortage"))
	assert.Equal(t, "5.0000", mv.Metadata.GetString("requested"))
}

func TestRerunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(nil)
	rice := e.items.add("RICE")
	main := e.registry.def.ID
	e.stock.set(rice.ID, main, q("10"))
	bowl, _ := e.recipes.add("BOWL", nil, ing(rice.ID, "0.5", "0"))
	order := OrderCreated{OrderID: "o-twice", Lines: []OrderLine{{MenuItemID: bowl, Qty: dec("2")}}}

	first := e.pipeline.Apply(ctx, order)
	assert.Equal(t, 1, first.Applied())

	second := e.pipeline.Apply(ctx, order)
	assert.Zero(t, second.Applied())
	require.Len(t, second.Buckets, 1)
	assert.Equal(t, SkipAlreadyApplied, second.Buckets[0].Skipped)

	assert.Equal(t, q("9"), e.stock.get(rice.ID, main))
	assert.Len(t, e.stock.usage(), 1)
}

func TestRedeliveryRecalculatesCommittedBuckets(t *testing.T) {
	ctx := context.Background()
	e := newEnv(nil)
	rice := e.items.add("RICE")
	main := e.registry.def.ID
	e.stock.set(rice.ID, main, q("10"))
	e.stock.totals[rice.ID] = q("10")
	bowl, _ := e.recipes.add("BOWL", nil, ing(rice.ID, "0.5", "0"))
	order := OrderCreated{OrderID: "o-recalc", Lines: []OrderLine{{MenuItemID: bowl, Qty: dec("2")}}}
	e.stock.failRecalcs = 1

	first := e.pipeline.Apply(ctx, order)
	assert.True(t, first.Retry)
	assert.Equal(t, 1, first.Applied())
	assert.Equal(t, q("9"), e.stock.get(rice.ID, main))
	assert.Equal(t, q("10"), e.stock.totals[rice.ID])

	second := e.pipeline.Apply(ctx, order)
	assert.False(t, second.Retry)
	assert.Zero(t, second.Applied())
	assert.Equal(t, q("9"), e.stock.get(rice.ID, main))
	assert.Equal(t, q("9"), e.stock.totals[rice.ID])
	assert.Len(t, e.stock.usage(), 1)
}

func TestWarehouseResolutionOrder(t *testing.T) {
	ctx := context.Background()
	e := newEnv(nil)
	kitchen := e.registry.code("KITCHEN")
	bar := e.registry.code("BAR")
	main := e.registry.def

	lemon := e.items.add("LEMON")
	lemon.DefaultWarehouseID = &kitchen.ID
	ice := e.items.add("ICE")
	sugar := e.items.add("SUGAR")

	withOverride := ing(lemon.ID, "1", "0")
	withOverride.WarehouseID = &bar.ID

	drink, _ := e.recipes.add("LEMONADE", nil, withOverride, ing(lemon.ID, "0.5", "0"), ing(ice.ID, "1", "0"), ing(sugar.ID, "0.1", "0"))
	for _, w := range []id.ID{kitchen.ID, bar.ID, main.ID} {
		e.stock.set(lemon.ID, w, q("5"))
		e.stock.set(ice.ID, w, q("5"))
		e.stock.set(sugar.ID, w, q("5"))
	}

	res := e.pipeline.Apply(ctx, OrderCreated{OrderID: "o-wh", Lines: []OrderLine{{MenuItemID: drink, Qty: dec("1")}}})
	assert.Equal(t, 4, res.Applied())

	assert.Equal(t, q("4"), e.stock.get(lemon.ID, bar.ID), "ingredient override wins")
	assert.Equal(t, q("4.5"), e.stock.get(lemon.ID, kitchen.ID), "item default warehouse is next")
	assert.Equal(t, q("4"), e.stock.get(ice.ID, main.ID), "registry default is last")
	assert.Equal(t, q("4.9"), e.stock.get(sugar.ID, main.ID))
}

func TestArchivedOverrideFallsBack(t *testing.T) {
	ctx := context.Background()
	e := newEnv(nil)
	bar := e.registry.code("BAR")
	bar.IsActive = false
	salt := e.items.add("SALT")
	withOverride := ing(salt.ID, "1", "0")
	withOverride.WarehouseID = &bar.ID
	dish, _ := e.recipes.add("SOUP", nil, withOverride)
	e.stock.set(salt.ID, e.registry.def.ID, q("2"))

	res := e.pipeline.Apply(ctx, OrderCreated{OrderID: "o-fb", Lines: []OrderLine{{MenuItemID: dish, Qty: dec("1")}}})
	assert.Equal(t, 1, res.Applied())
	assert.Equal(t, q("1"), e.stock.get(salt.ID, e.registry.def.ID))
}

func TestFailedBucketDoesNotAbortOthers(t *testing.T) {
	ctx := context.Background()
	e := newEnv(nil)
	good := e.items.add("GOOD")
	bad := e.items.add("BAD")
	gone := e.items.add("GONE")
	gone.IsActive = false
	main := e.registry.def.ID
	e.stock.set(good.ID, main, q("5"))
	e.stock.failItemID = &bad.ID

	dish, _ := e.recipes.add("DISH", nil, ing(bad.ID, "1", "0"), ing(good.ID, "1", "0"), ing(gone.ID, "1", "0"))
	unknownMenuItem := id.New()

	res := e.pipeline.Apply(ctx, OrderCreated{OrderID: "o-partial", Lines: []OrderLine{
		{MenuItemID: dish, Qty: dec("1")},
		{MenuItemID: unknownMenuItem, Qty: dec("1")},
	}})

	assert.True(t, res.Retry)
	assert.Equal(t, 1, res.Applied())
	assert.Equal(t, 1, res.LinesSkipped)
	assert.Equal(t, q("4"), e.stock.get(good.ID, main))

	reasons := map[id.ID]string{}
	for _, b := range res.Buckets {
		reasons[b.ItemID] = b.Skipped
	}
	assert.Equal(t, SkipFailed, reasons[bad.ID])
	assert.Equal(t, SkipItemInactive, reasons[gone.ID])
	assert.Equal(t, "", reasons[good.ID])
}

func TestLockedOrderIsRetried(t *testing.T) {
	e := newEnv(busyLocker{})
	rice := e.items.add("RICE")
	bowl, _ := e.recipes.add("BOWL", nil, ing(rice.ID, "1", "0"))

	res := e.pipeline.Apply(context.Background(), OrderCreated{OrderID: "o-lock", Lines: []OrderLine{{MenuItemID: bowl, Qty: dec("1")}}})
	assert.True(t, res.Retry)
	assert.Empty(t, e.stock.movements)
}

func TestLockIsReleased(t *testing.T) {
	locker := &countingLocker{}
	e := newEnv(locker)
	rice := e.items.add("RICE")
	bowl, _ := e.recipes.add("BOWL", nil, ing(rice.ID, "1", "0"))

	e.pipeline.Apply(context.Background(), OrderCreated{OrderID: "o-l", Lines: []OrderLine{{MenuItemID: bowl, Qty: dec("1")}}})
	assert.Equal(t, 1, locker.locked)
	assert.Equal(t, 1, locker.released)
}

func TestOrderWithoutRecipesIsNoop(t *testing.T) {
	e := newEnv(nil)
	res := e.pipeline.Apply(context.Background(), OrderCreated{OrderID: "o-none", Lines: []OrderLine{{MenuItemID: id.New(), Qty: dec("1")}}})
	assert.False(t, res.Retry)
	assert.Equal(t, 1, res.LinesSkipped)
	assert.Empty(t, e.actions.entries)
}

func TestEnqueueWritesOutboxEvent(t *testing.T) {
	pub := &capturePublisher{}
	enq := NewEnqueuer(pub)
	orderID := id.New()

	err := enq.Enqueue(context.Background(), OrderCreated{OrderID: orderID.String(), Lines: []OrderLine{{MenuItemID: id.New(), Qty: dec("1")}}})
	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeOrderCreated, pub.events[0].Type)
	assert.Equal(t, orderID, pub.events[0].AggregateID)
	payload := pub.events[0].Payload.(OrderCreated)
	assert.Equal(t, "system", payload.ActorID)
	assert.False(t, payload.CreatedAt.IsZero())

	err = enq.Enqueue(context.Background(), OrderCreated{OrderID: "x", Lines: []OrderLine{{MenuItemID: id.New()}}})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
}
