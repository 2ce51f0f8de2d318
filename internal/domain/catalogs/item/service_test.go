package item

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restopos/internal/core/apperror"
	"restopos/internal/core/id"
	"restopos/internal/core/tx"
	"restopos/internal/core/types"
	"restopos/internal/domain"
	"restopos/internal/domain/catalogs/warehouse"
)

type memRepo struct {
	rows  map[id.ID]*Item
	stock map[id.ID]types.Quantity
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[id.ID]*Item), stock: make(map[id.ID]types.Quantity)}
}

func (r *memRepo) Create(_ context.Context, it *Item) error {
	cp := *it
	r.rows[it.ID] = &cp
	return nil
}

func (r *memRepo) Update(_ context.Context, it *Item) error {
	cur, ok := r.rows[it.ID]
	if !ok {
		return apperror.NewNotFound("item", it.ID.String())
	}
	if cur.Version != it.Version {
		return apperror.NewConcurrentModification("item", it.ID.String())
	}
	it.Version++
	cp := *it
	r.rows[it.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(_ context.Context, itemID id.ID) (*Item, error) {
	it, ok := r.rows[itemID]
	if !ok {
		return nil, apperror.NewNotFound("item", itemID.String())
	}
	cp := *it
	return &cp, nil
}

func (r *memRepo) GetForUpdate(ctx context.Context, itemID id.ID) (*Item, error) {
	return r.GetByID(ctx, itemID)
}

func (r *memRepo) GetByCode(_ context.Context, sku string) (*Item, error) {
	for _, it := range r.rows {
		if it.Code == sku {
			cp := *it
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("item", sku)
}

func (r *memRepo) ExistsByCode(ctx context.Context, sku string) (bool, error) {
	_, err := r.GetByCode(ctx, sku)
	return err == nil, nil
}

func (r *memRepo) GetMany(_ context.Context, ids []id.ID) (map[id.ID]*Item, error) {
	out := make(map[id.ID]*Item, len(ids))
	for _, itemID := range ids {
		if it, ok := r.rows[itemID]; ok {
			cp := *it
			out[itemID] = &cp
		}
	}
	return out, nil
}

func (r *memRepo) List(_ context.Context, filter Filter) (domain.ListResult[*Item], error) {
	var out []*Item
	for _, it := range r.rows {
		if !filter.IncludeArchived && !it.IsActive {
			continue
		}
		if filter.Category != "" && (it.Category == nil || *it.Category != filter.Category) {
			continue
		}
		cp := *it
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return domain.ListResult[*Item]{Items: out, TotalCount: int64(len(out)), Limit: filter.Limit}, nil
}

func (r *memRepo) StockTotal(_ context.Context, itemID id.ID) (types.Quantity, error) {
	return r.stock[itemID], nil
}

func (r *memRepo) UpdateCost(_ context.Context, itemID id.ID, cost types.Money, restockedAt time.Time) error {
	it, ok := r.rows[itemID]
	if !ok {
		return apperror.NewNotFound("item", itemID.String())
	}
	it.Cost = cost
	it.LastRestockDate = &restockedAt
	return nil
}

type stubWarehouses struct {
	active map[id.ID]bool
}

func (s stubWarehouses) Resolve(_ context.Context, warehouseID *id.ID) (*warehouse.Warehouse, error) {
	if warehouseID == nil || !s.active[*warehouseID] {
		return nil, apperror.NewNotFound("warehouse", "x")
	}
	w := warehouse.NewWarehouse("W", "W", warehouse.TypeStorage)
	w.ID = *warehouseID
	return w, nil
}

func TestCreateItemDefaults(t *testing.T) {
	svc := NewService(newMemRepo(), tx.Nop{}, nil)

	it, err := svc.Create(context.Background(), CreateCommand{SKU: " flour-01 ", Name: "Flour"})
	require.NoError(t, err)

	assert.Equal(t, "FLOUR-01", it.SKU())
	assert.Equal(t, DefaultUnit, it.Unit)
	assert.Equal(t, TrackingFIFO, it.TrackingMethod)
	assert.True(t, it.AlertEnabled)
	assert.True(t, it.Cost.IsZero())
	assert.Equal(t, "system", it.CreatedBy)
}

func TestCreateItemDuplicateSKU(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo(), tx.Nop{}, nil)

	_, err := svc.Create(ctx, CreateCommand{SKU: "MILK", Name: "Milk", Unit: "l"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateCommand{SKU: "milk", Name: "Milk 2", Unit: "l"})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
	assert.Equal(t, 409, apperror.GetHTTPStatus(err))
}

func TestCreateItemValidation(t *testing.T) {
	svc := NewService(newMemRepo(), tx.Nop{}, nil)

	cases := []struct {
		name string
		cmd  CreateCommand
	}{
		{"missing sku", CreateCommand{Name: "Salt"}},
		{"missing name", CreateCommand{SKU: "SALT"}},
		{"negative par", CreateCommand{SKU: "SALT", Name: "Salt", ParLevel: types.NewQuantity(-1)}},
		{"bad tracking", CreateCommand{SKU: "SALT", Name: "Salt", TrackingMethod: "random"}},
		{"expiry without shelf life", CreateCommand{SKU: "SALT", Name: "Salt", TrackExpiry: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.cmd)
			assert.True(t, apperror.HasCode(err, apperror.CodeValidation), "got %v", err)
		})
	}
}

func TestCreateItemChecksDefaultWarehouse(t *testing.T) {
	ctx := context.Background()
	kitchen := id.New()
	svc := NewService(newMemRepo(), tx.Nop{}, stubWarehouses{active: map[id.ID]bool{kitchen: true}})

	it, err := svc.Create(ctx, CreateCommand{SKU: "EGG", Name: "Eggs", DefaultWarehouseID: &kitchen})
	require.NoError(t, err)
	assert.Equal(t, kitchen, *it.DefaultWarehouseID)

	unknown := id.New()
	_, err = svc.Create(ctx, CreateCommand{SKU: "EGG2", Name: "Eggs", DefaultWarehouseID: &unknown})
	assert.True(t, apperror.IsNotFound(err))
}

func TestUpdateItem(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := NewService(repo, tx.Nop{}, nil)

	a, err := svc.Create(ctx, CreateCommand{SKU: "A", Name: "A"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateCommand{SKU: "B", Name: "B"})
	require.NoError(t, err)

	taken := "b"
	_, err = svc.Update(ctx, a.ID, UpdateCommand{SKU: &taken})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	par := types.NewQuantity(5)
	name := "Apples"
	got, err := svc.Update(ctx, a.ID, UpdateCommand{Name: &name, ParLevel: &par})
	require.NoError(t, err)
	assert.Equal(t, "Apples", got.Name)
	assert.Equal(t, par, got.ParLevel)
	assert.Equal(t, 2, got.Version)

	_, err = svc.Update(ctx, a.ID, UpdateCommand{Version: 1, Name: &name})
	assert.True(t, apperror.HasCode(err, apperror.CodeConcurrentModification))
}

func TestArchiveItemWithStockIsRefused(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := NewService(repo, tx.Nop{}, nil)

	it, err := svc.Create(ctx, CreateCommand{SKU: "OIL", Name: "Oil"})
	require.NoError(t, err)

	repo.stock[it.ID] = types.NewQuantity(2)
	_, err = svc.Archive(ctx, it.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))

	repo.stock[it.ID] = 0
	archived, err := svc.Archive(ctx, it.ID)
	require.NoError(t, err)
	assert.False(t, archived.IsActive)

	_, err = svc.GetActive(ctx, it.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestItemLowStockAndExpiry(t *testing.T) {
	it := NewItem("CREAM", "Cream", "l")
	it.ParLevel = types.NewQuantity(5)
	it.CurrentStock = types.NewQuantity(5)
	assert.True(t, it.IsLowStock())

	it.AlertEnabled = false
	assert.False(t, it.IsLowStock())

	_, ok := it.ExpiresAt()
	assert.False(t, ok)

	restocked := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	it.TrackExpiry = true
	it.ShelfLifeDays = 4
	it.LastRestockDate = &restocked
	exp, ok := it.ExpiresAt()
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), exp)
}
