package stock

import (
	"context"
	"sort"
	"sync"
	"time"

	"restopos/internal/core/apperror"
	"restopos/internal/core/events"
	"restopos/internal/core/id"
	"restopos/internal/core/types"
	"restopos/internal/domain"
	"restopos/internal/domain/catalogs/item"
	"restopos/internal/domain/catalogs/warehouse"
)

type bucketKey struct {
	item      id.ID
	warehouse id.ID
}

// memStore backs both the stock repository and the item catalog fakes.
type memStore struct {
	mu        sync.Mutex
	stock     map[bucketKey]*Stock
	movements []*Movement
	items     map[id.ID]*item.Item
}

func newMemStore() *memStore {
	return &memStore{
		stock: make(map[bucketKey]*Stock),
		items: make(map[id.ID]*item.Item),
	}
}

func (r *memStore) GetOrCreateStock(_ context.Context, itemID, warehouseID id.ID, seed Seed) (*Stock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := bucketKey{itemID, warehouseID}
	row, ok := r.stock[k]
	if !ok {
		row = &Stock{
			ItemID:       itemID,
			WarehouseID:  warehouseID,
			ParLevel:     seed.ParLevel,
			ReorderPoint: seed.ReorderPoint,
			SafetyStock:  seed.SafetyStock,
		}
		r.stock[k] = row
	}
	cp := *row
	return &cp, nil
}

func (r *memStore) GetStock(_ context.Context, itemID, warehouseID id.ID) (*Stock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.stock[bucketKey{itemID, warehouseID}]
	if !ok {
		return nil, apperror.NewNotFound("stock", itemID.String())
	}
	cp := *row
	return &cp, nil
}

func (r *memStore) Increment(_ context.Context, itemID, warehouseID id.ID, delta types.Quantity) (types.Quantity, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.stock[bucketKey{itemID, warehouseID}]
	if row.Quantity+delta < 0 {
		return 0, false, nil
	}
	row.Quantity += delta
	return row.Quantity, true, nil
}

func (r *memStore) DecrementClamped(_ context.Context, itemID, warehouseID id.ID, qty types.Quantity) (types.Quantity, types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.stock[bucketKey{itemID, warehouseID}]
	before := row.Quantity
	row.Quantity -= types.MinQuantity(before, qty)
	return before, row.Quantity, nil
}

func (r *memStore) SetQuantity(_ context.Context, itemID, warehouseID id.ID, counted types.Quantity, countedAt time.Time) (types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.stock[bucketKey{itemID, warehouseID}]
	before := row.Quantity
	row.Quantity = counted
	row.LastCountDate = &countedAt
	return before, nil
}

func (r *memStore) CreateMovement(_ context.Context, m *Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.movements = append(r.movements, &cp)
	return nil
}

func (r *memStore) HasMovement(_ context.Context, t MovementType, reference string, itemID, warehouseID id.ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.movements {
		if m.Type == t && m.Reference == reference && m.ItemID == itemID && m.WarehouseID == warehouseID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memStore) ListMovements(_ context.Context, filter MovementFilter) (domain.ListResult[*Movement], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Movement
	for _, m := range r.movements {
		if filter.ItemID != nil && m.ItemID != *filter.ItemID {
			continue
		}
		if filter.WarehouseID != nil && m.WarehouseID != *filter.WarehouseID {
			continue
		}
		out = append(out, m)
	}
	return domain.ListResult[*Movement]{Items: out, TotalCount: int64(len(out)), Limit: filter.Limit}, nil
}

func (r *memStore) ListStock(_ context.Context, filter StockFilter) (domain.ListResult[*StockLine], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*StockLine
	for k, row := range r.stock {
		if filter.WarehouseID != nil && k.warehouse != *filter.WarehouseID {
			continue
		}
		if filter.ItemID != nil && k.item != *filter.ItemID {
			continue
		}
		it := r.items[k.item]
		out = append(out, &StockLine{
			Stock:        *row,
			ItemName:     it.Name,
			SKU:          it.Code,
			Unit:         it.Unit,
			ItemParLevel: it.ParLevel,
			ItemCost:     it.Cost,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return domain.ListResult[*StockLine]{Items: out, TotalCount: int64(len(out)), Limit: filter.Limit}, nil
}

func (r *memStore) RecalcItemTotals(_ context.Context, itemID id.ID) (types.Quantity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total types.Quantity
	for k, row := range r.stock {
		if k.item == itemID {
			total += row.Quantity
		}
	}
	if it, ok := r.items[itemID]; ok {
		it.CurrentStock = total
	}
	return total, nil
}

// stockOf returns the bucket quantity, zero when the row does not exist.
func (r *memStore) stockOf(itemID, warehouseID id.ID) types.Quantity {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.stock[bucketKey{itemID, warehouseID}]; ok {
		return row.Quantity
	}
	return 0
}

// catalog implements ItemCatalog over the shared store.
type catalog struct{ store *memStore }

func (c catalog) GetActive(_ context.Context, itemID id.ID) (*item.Item, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	it, ok := c.store.items[itemID]
	if !ok || !it.IsActive {
		return nil, apperror.NewNotFound("item", itemID.String())
	}
	cp := *it
	return &cp, nil
}

func (c catalog) GetBySKU(_ context.Context, sku string) (*item.Item, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	for _, it := range c.store.items {
		if it.Code == sku {
			cp := *it
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("item", sku)
}

func (c catalog) Create(_ context.Context, cmd item.CreateCommand) (*item.Item, error) {
	it := item.NewItem(cmd.SKU, cmd.Name, cmd.Unit)
	it.ParLevel = cmd.ParLevel
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	cp := *it
	c.store.items[it.ID] = &cp
	return it, nil
}

func (c catalog) add(sku, name string) *item.Item {
	it := item.NewItem(sku, name, "kg")
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.store.items[it.ID] = it
	return it
}

// warehouses resolves nil to the first registered warehouse.
type warehouses struct {
	byID map[id.ID]*warehouse.Warehouse
	main *warehouse.Warehouse
}

func newWarehouses(codes ...string) *warehouses {
	w := &warehouses{byID: make(map[id.ID]*warehouse.Warehouse)}
	for i, code := range codes {
		wh := warehouse.NewWarehouse(code, code, warehouse.TypeStorage)
		w.byID[wh.ID] = wh
		if i == 0 {
			w.main = wh
		}
	}
	return w
}

func (w *warehouses) Resolve(_ context.Context, warehouseID *id.ID) (*warehouse.Warehouse, error) {
	if warehouseID == nil {
		return w.main, nil
	}
	wh, ok := w.byID[*warehouseID]
	if !ok || !wh.IsActive {
		return nil, apperror.NewNotFound("warehouse", warehouseID.String())
	}
	return wh, nil
}

func (w *warehouses) byCode(code string) *warehouse.Warehouse {
	for _, wh := range w.byID {
		if wh.Code == code {
			return wh
		}
	}
	return nil
}

type recordingPublisher struct {
	published []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.published = append(p.published, e)
	return nil
}

func (p *recordingPublisher) PublishBatch(_ context.Context, evs []events.Event) error {
	p.published = append(p.published, evs...)
	return nil
}

func (p *recordingPublisher) ofType(t string) []events.Event {
	var out []events.Event
	for _, e := range p.published {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type recordingNotifier struct {
	notified []events.Event
}

func (n *recordingNotifier) Notify(_ context.Context, e events.Event) {
	n.notified = append(n.notified, e)
}
