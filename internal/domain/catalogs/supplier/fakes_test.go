package supplier

import (
	"context"
	"sort"
	"time"

	"restopos/internal/core/apperror"
	"restopos/internal/core/id"
	"restopos/internal/core/types"
	"restopos/internal/domain"
	"restopos/internal/domain/catalogs/item"
	"restopos/internal/domain/catalogs/warehouse"
	"restopos/internal/domain/registers/stock"
)

type memRepo struct {
	rows     map[id.ID]*Supplier
	prices   []*PriceEntry
	payments []*Payment
	invoices []*Invoice
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[id.ID]*Supplier)}
}

func (r *memRepo) Create(_ context.Context, s *Supplier) error {
	cp := *s
	r.rows[s.ID] = &cp
	return nil
}

func (r *memRepo) Update(_ context.Context, s *Supplier) error {
	cur, ok := r.rows[s.ID]
	if !ok {
		return apperror.NewNotFound("supplier", s.ID.String())
	}
	if cur.Version != s.Version {
		return apperror.NewConcurrentModification("supplier", s.ID.String())
	}
	s.Version++
	s.Balance, s.TotalPurchases, s.TotalPayments = cur.Balance, cur.TotalPurchases, cur.TotalPayments
	cp := *s
	r.rows[s.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(_ context.Context, supplierID id.ID) (*Supplier, error) {
	s, ok := r.rows[supplierID]
	if !ok {
		return nil, apperror.NewNotFound("supplier", supplierID.String())
	}
	cp := *s
	return &cp, nil
}

func (r *memRepo) GetForUpdate(ctx context.Context, supplierID id.ID) (*Supplier, error) {
	return r.GetByID(ctx, supplierID)
}

func (r *memRepo) ExistsByCode(_ context.Context, code string) (bool, error) {
	for _, s := range r.rows {
		if s.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) List(_ context.Context, filter domain.ListFilter) (domain.ListResult[*Supplier], error) {
	var out []*Supplier
	for _, s := range r.rows {
		if filter.IncludeArchived || s.IsActive {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return domain.ListResult[*Supplier]{Items: out, TotalCount: int64(len(out)), Limit: filter.Limit}, nil
}

func (r *memRepo) SaveBalances(_ context.Context, s *Supplier) error {
	cur := r.rows[s.ID]
	cur.Balance, cur.TotalPurchases, cur.TotalPayments = s.Balance, s.TotalPurchases, s.TotalPayments
	return nil
}

func (r *memRepo) AddPriceEntry(_ context.Context, e *PriceEntry) error {
	r.prices = append(r.prices, e)
	return nil
}

func (r *memRepo) AddPayment(_ context.Context, p *Payment) error {
	r.payments = append(r.payments, p)
	return nil
}

func (r *memRepo) AddInvoice(_ context.Context, inv *Invoice) error {
	r.invoices = append(r.invoices, inv)
	return nil
}

func (r *memRepo) SetInvoiceStatus(_ context.Context, supplierID, invoiceID id.ID, status InvoiceStatus) error {
	for _, inv := range r.invoices {
		if inv.ID == invoiceID && inv.SupplierID == supplierID {
			inv.Status = status
			return nil
		}
	}
	return apperror.NewNotFound("invoice", invoiceID.String())
}

func (r *memRepo) ListPriceHistory(_ context.Context, supplierID id.ID, filter PriceFilter) (domain.ListResult[*PriceEntry], error) {
	var out []*PriceEntry
	for i := len(r.prices) - 1; i >= 0; i-- {
		e := r.prices[i]
		if e.SupplierID != supplierID {
			continue
		}
		if filter.ItemID != nil && e.ItemID != *filter.ItemID {
			continue
		}
		if filter.Kind != "" && e.Kind != filter.Kind {
			continue
		}
		out = append(out, e)
	}
	return domain.ListResult[*PriceEntry]{Items: out, TotalCount: int64(len(out)), Limit: filter.Limit}, nil
}

func (r *memRepo) ListPayments(_ context.Context, supplierID id.ID, page domain.Page) (domain.ListResult[*Payment], error) {
	var out []*Payment
	for i := len(r.payments) - 1; i >= 0; i-- {
		if r.payments[i].SupplierID == supplierID {
			out = append(out, r.payments[i])
		}
	}
	return domain.ListResult[*Payment]{Items: out, TotalCount: int64(len(out)), Limit: page.Limit}, nil
}

func (r *memRepo) ListInvoices(_ context.Context, supplierID id.ID, page domain.Page) (domain.ListResult[*Invoice], error) {
	var out []*Invoice
	for _, inv := range r.invoices {
		if inv.SupplierID == supplierID {
			out = append(out, inv)
		}
	}
	return domain.ListResult[*Invoice]{Items: out, TotalCount: int64(len(out)), Limit: page.Limit}, nil
}

func (r *memRepo) TrimHistories(_ context.Context, keep int) (int64, error) {
	var removed int64
	if len(r.prices) > keep {
		removed = int64(len(r.prices) - keep)
		r.prices = r.prices[len(r.prices)-keep:]
	}
	return removed, nil
}

type bucket struct{ item, warehouse id.ID }

// memStock is a stock.Repository that also owns the items, so totals land on them.
type memStock struct {
	rows      map[bucket]types.Quantity
	movements []*stock.Movement
	items     map[id.ID]*item.Item
}

func newMemStock() *memStock {
	return &memStock{rows: make(map[bucket]types.Quantity), items: make(map[id.ID]*item.Item)}
}

func (m *memStock) GetOrCreateStock(_ context.Context, itemID, warehouseID id.ID, _ stock.Seed) (*stock.Stock, error) {
	k := bucket{itemID, warehouseID}
	if _, ok := m.rows[k]; !ok {
		m.rows[k] = 0
	}
	return &stock.Stock{ItemID: itemID, WarehouseID: warehouseID, Quantity: m.rows[k]}, nil
}

func (m *memStock) GetStock(_ context.Context, itemID, warehouseID id.ID) (*stock.Stock, error) {
	q, ok := m.rows[bucket{itemID, warehouseID}]
	if !ok {
		return nil, apperror.NewNotFound("stock", itemID.String())
	}
	return &stock.Stock{ItemID: itemID, WarehouseID: warehouseID, Quantity: q}, nil
}

func (m *memStock) Increment(_ context.Context, itemID, warehouseID id.ID, delta types.Quantity) (types.Quantity, bool, error) {
	k := bucket{itemID, warehouseID}
	if m.rows[k]+delta < 0 {
		return 0, false, nil
	}
	m.rows[k] += delta
	return m.rows[k], true, nil
}

func (m *memStock) DecrementClamped(_ context.Context, itemID, warehouseID id.ID, qty types.Quantity) (types.Quantity, types.Quantity, error) {
	k := bucket{itemID, warehouseID}
	before := m.rows[k]
	m.rows[k] = before - types.MinQuantity(before, qty)
	return before, m.rows[k], nil
}

func (m *memStock) SetQuantity(_ context.Context, itemID, warehouseID id.ID, counted types.Quantity, _ time.Time) (types.Quantity, error) {
	k := bucket{itemID, warehouseID}
	before := m.rows[k]
	m.rows[k] = counted
	return before, nil
}

func (m *memStock) CreateMovement(_ context.Context, mv *stock.Movement) error {
	cp := *mv
	m.movements = append(m.movements, &cp)
	return nil
}

func (m *memStock) HasMovement(context.Context, stock.MovementType, string, id.ID, id.ID) (bool, error) {
	return false, nil
}

func (m *memStock) ListMovements(context.Context, stock.MovementFilter) (domain.ListResult[*stock.Movement], error) {
	return domain.ListResult[*stock.Movement]{Items: m.movements}, nil
}

func (m *memStock) ListStock(context.Context, stock.StockFilter) (domain.ListResult[*stock.StockLine], error) {
	return domain.ListResult[*stock.StockLine]{}, nil
}

func (m *memStock) RecalcItemTotals(_ context.Context, itemID id.ID) (types.Quantity, error) {
	var total types.Quantity
	for k, q := range m.rows {
		if k.item == itemID {
			total += q
		}
	}
	if it, ok := m.items[itemID]; ok {
		it.CurrentStock = total
	}
	return total, nil
}

// GetActiveForUpdate and UpdateCost make memStock the ItemCosts fake as well.
func (m *memStock) GetActiveForUpdate(_ context.Context, itemID id.ID) (*item.Item, error) {
	it, ok := m.items[itemID]
	if !ok || !it.IsActive {
		return nil, apperror.NewNotFound("item", itemID.String())
	}
	cp := *it
	return &cp, nil
}

func (m *memStock) UpdateCost(_ context.Context, itemID id.ID, cost types.Money, restockedAt time.Time) error {
	it := m.items[itemID]
	it.Cost = cost
	it.LastRestockDate = &restockedAt
	return nil
}

func (m *memStock) addItem(sku string) *item.Item {
	it := item.NewItem(sku, sku, "kg")
	m.items[it.ID] = it
	return it
}

type oneWarehouse struct{ w *warehouse.Warehouse }

func (o oneWarehouse) Resolve(_ context.Context, warehouseID *id.ID) (*warehouse.Warehouse, error) {
	if warehouseID == nil || *warehouseID == o.w.ID {
		return o.w, nil
	}
	return nil, apperror.NewNotFound("warehouse", warehouseID.String())
}
