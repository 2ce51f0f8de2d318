package usage

import (
	"context"
	"errors"
	"sync"
	"time"

	"restopos/internal/core/apperror"
	"restopos/internal/core/events"
	"restopos/internal/core/id"
	"restopos/internal/core/types"
	"restopos/internal/domain"
	"restopos/internal/domain/catalogs/item"
	"restopos/internal/domain/catalogs/recipe"
	"restopos/internal/domain/catalogs/warehouse"
	"restopos/internal/domain/registers/stock"
)

type key struct{ item, warehouse id.ID }

// stockRepo is an in-memory stock.Repository.
type stockRepo struct {
	mu         sync.Mutex
	rows       map[key]types.Quantity
	movements  []*stock.Movement
	recalcs    map[id.ID]int
	totals     map[id.ID]types.Quantity
	failItemID *id.ID
	// failRecalcs makes the next n RecalcItemTotals calls fail.
	failRecalcs int
}

func newStockRepo() *stockRepo {
	return &stockRepo{
		rows:    make(map[key]types.Quantity),
		recalcs: make(map[id.ID]int),
		totals:  make(map[id.ID]types.Quantity),
	}
}

var errBoom = errors.New("connection reset")

func (r *stockRepo) GetOrCreateStock(_ context.Context, itemID, warehouseID id.ID, _ stock.Seed) (*stock.Stock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failItemID != nil && *r.failItemID == itemID {
		return nil, errBoom
	}
	k := key{itemID, warehouseID}
	if _, ok := r.rows[k]; !ok {
		r.rows[k] = 0
	}
	return &stock.Stock{ItemID: itemID, WarehouseID: warehouseID, Quantity: r.rows[k]}, nil
}

func (r *stockRepo) GetStock(_ context.Context, itemID, warehouseID id.ID) (*stock.Stock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.rows[key{itemID, warehouseID}]
	if !ok {
		return nil, apperror.NewNotFound("stock", itemID.String())
	}
	return &stock.Stock{ItemID: itemID, WarehouseID: warehouseID, Quantity: q}, nil
}

func (r *stockRepo) Increment(_ context.Context, itemID, warehouseID id.ID, delta types.Quantity) (types.Quantity, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{itemID, warehouseID}
	if r.rows[k]+delta < 0 {
		return 0, false, nil
	}
	r.rows[k] += delta
	return r.rows[k], true, nil
}

func (r *stockRepo) DecrementClamped(_ context.Context, itemID, warehouseID id.ID, qty types.Quantity) (types.Quantity, types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{itemID, warehouseID}
	before := r.rows[k]
	r.rows[k] = before - types.MinQuantity(before, qty)
	return before, r.rows[k], nil
}

func (r *stockRepo) SetQuantity(_ context.Context, itemID, warehouseID id.ID, counted types.Quantity, _ time.Time) (types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{itemID, warehouseID}
	before := r.rows[k]
	r.rows[k] = counted
	return before, nil
}

func (r *stockRepo) CreateMovement(_ context.Context, m *stock.Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.movements = append(r.movements, &cp)
	return nil
}

func (r *stockRepo) HasMovement(_ context.Context, t stock.MovementType, reference string, itemID, warehouseID id.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.movements {
		if m.Type == t && m.Reference == reference && m.ItemID == itemID && m.WarehouseID == warehouseID {
			return true, nil
		}
	}
	return false, nil
}

func (r *stockRepo) ListMovements(context.Context, stock.MovementFilter) (domain.ListResult[*stock.Movement], error) {
	return domain.ListResult[*stock.Movement]{Items: r.movements}, nil
}

func (r *stockRepo) ListStock(context.Context, stock.StockFilter) (domain.ListResult[*stock.StockLine], error) {
	return domain.ListResult[*stock.StockLine]{}, nil
}

func (r *stockRepo) RecalcItemTotals(_ context.Context, itemID id.ID) (types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failRecalcs > 0 {
		r.failRecalcs--
		return 0, errBoom
	}
	var total types.Quantity
	for k, q := range r.rows {
		if k.item == itemID {
			total += q
		}
	}
	r.recalcs[itemID]++
	r.totals[itemID] = total
	return total, nil
}

func (r *stockRepo) set(itemID, warehouseID id.ID, q types.Quantity) {
	r.rows[key{itemID, warehouseID}] = q
}

func (r *stockRepo) get(itemID, warehouseID id.ID) types.Quantity {
	return r.rows[key{itemID, warehouseID}]
}

func (r *stockRepo) usage() []*stock.Movement {
	var out []*stock.Movement
	for _, m := range r.movements {
		if m.Type == stock.MovementUsage {
			out = append(out, m)
		}
	}
	return out
}

type itemMap map[id.ID]*item.Item

func (m itemMap) GetActive(_ context.Context, itemID id.ID) (*item.Item, error) {
	it, ok := m[itemID]
	if !ok || !it.IsActive {
		return nil, apperror.NewNotFound("item", itemID.String())
	}
	cp := *it
	return &cp, nil
}

func (m itemMap) add(sku string) *item.Item {
	it := item.NewItem(sku, sku, "kg")
	it.Cost = types.MustMoney("2")
	m[it.ID] = it
	return it
}

type registry struct {
	byID map[id.ID]*warehouse.Warehouse
	def  *warehouse.Warehouse
}

func newRegistry(codes ...string) *registry {
	r := &registry{byID: make(map[id.ID]*warehouse.Warehouse)}
	for i, c := range codes {
		w := warehouse.NewWarehouse(c, c, warehouse.TypeStorage)
		r.byID[w.ID] = w
		if i == 0 {
			r.def = w
		}
	}
	return r
}

func (r *registry) Resolve(_ context.Context, warehouseID *id.ID) (*warehouse.Warehouse, error) {
	if warehouseID == nil {
		return r.def, nil
	}
	w, ok := r.byID[*warehouseID]
	if !ok || !w.IsActive {
		return nil, apperror.NewNotFound("warehouse", warehouseID.String())
	}
	return w, nil
}

func (r *registry) code(c string) *warehouse.Warehouse {
	for _, w := range r.byID {
		if w.Code == c {
			return w
		}
	}
	return nil
}

type recipeBook struct {
	byMenuItem map[id.ID]*recipe.Recipe
	touched    []id.ID
}

func (b *recipeBook) ActiveForMenuItems(_ context.Context, menuItemIDs []id.ID) (map[id.ID]*recipe.Recipe, error) {
	out := make(map[id.ID]*recipe.Recipe)
	for _, m := range menuItemIDs {
		if r, ok := b.byMenuItem[m]; ok && r.IsActive {
			out[m] = r
		}
	}
	return out, nil
}

func (b *recipeBook) TouchLastUsed(_ context.Context, ids []id.ID) error {
	b.touched = append(b.touched, ids...)
	return nil
}

// add registers a recipe with one default version for a new menu item.
func (b *recipeBook) add(name string, portions recipe.Portions, ingredients ...recipe.Ingredient) (id.ID, *recipe.Recipe) {
	menuItem := id.New()
	r := recipe.NewRecipe(name, name)
	r.MenuItemID = &menuItem
	if len(portions) == 0 {
		portions = recipe.DefaultPortions()
	}
	recipe.AttachVersion(r, &recipe.Version{
		ID:            id.New(),
		VersionNumber: 1,
		Ingredients:   ingredients,
		Portions:      portions,
	}, true)
	if b.byMenuItem == nil {
		b.byMenuItem = make(map[id.ID]*recipe.Recipe)
	}
	b.byMenuItem[menuItem] = r
	return menuItem, r
}

type busyLocker struct{}

func (busyLocker) Lock(context.Context, string) (func(), error) { return nil, ErrLocked }

type countingLocker struct{ locked, released int }

func (l *countingLocker) Lock(context.Context, string) (func(), error) {
	l.locked++
	return func() { l.released++ }, nil
}

type capturePublisher struct{ events []events.Event }

func (p *capturePublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return nil
}

func (p *capturePublisher) PublishBatch(_ context.Context, evs []events.Event) error {
	p.events = append(p.events, evs...)
	return nil
}
