package recipe

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restopos/internal/core/apperror"
	"restopos/internal/core/id"
	"restopos/internal/core/tx"
	"restopos/internal/core/types"
	"restopos/internal/domain"
	"restopos/internal/domain/catalogs/item"
	"restopos/internal/domain/catalogs/warehouse"
)

type memRepo struct {
	recipes  map[id.ID]*Recipe
	versions map[id.ID]*Version
	touched  []id.ID
}

func newMemRepo() *memRepo {
	return &memRepo{recipes: make(map[id.ID]*Recipe), versions: make(map[id.ID]*Version)}
}

func (r *memRepo) Create(_ context.Context, rec *Recipe) error {
	cp := *rec
	cp.Versions = nil
	r.recipes[rec.ID] = &cp
	return nil
}

func (r *memRepo) Update(_ context.Context, rec *Recipe) error {
	cur, ok := r.recipes[rec.ID]
	if !ok {
		return apperror.NewNotFound("recipe", rec.ID.String())
	}
	if cur.Version != rec.Version {
		return apperror.NewConcurrentModification("recipe", rec.ID.String())
	}
	rec.Version++
	cp := *rec
	cp.Versions = nil
	r.recipes[rec.ID] = &cp
	return nil
}

func (r *memRepo) GetByID(_ context.Context, recipeID id.ID) (*Recipe, error) {
	rec, ok := r.recipes[recipeID]
	if !ok {
		return nil, apperror.NewNotFound("recipe", recipeID.String())
	}
	cp := *rec
	return &cp, nil
}

func (r *memRepo) GetForUpdate(ctx context.Context, recipeID id.ID) (*Recipe, error) {
	return r.GetByID(ctx, recipeID)
}

func (r *memRepo) ExistsByCode(_ context.Context, code string) (bool, error) {
	for _, rec := range r.recipes {
		if rec.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) List(_ context.Context, filter Filter) (domain.ListResult[*Recipe], error) {
	var out []*Recipe
	for _, rec := range r.recipes {
		if !filter.IncludeArchived && !rec.IsActive {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return domain.ListResult[*Recipe]{Items: out, TotalCount: int64(len(out))}, nil
}

func (r *memRepo) FindActiveByMenuItems(_ context.Context, menuItemIDs []id.ID) ([]*Recipe, error) {
	want := make(map[id.ID]bool, len(menuItemIDs))
	for _, m := range menuItemIDs {
		want[m] = true
	}
	var out []*Recipe
	for _, rec := range r.recipes {
		if rec.IsActive && rec.MenuItemID != nil && want[*rec.MenuItemID] {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memRepo) CreateVersion(_ context.Context, v *Version) error {
	cp := *v
	r.versions[v.ID] = &cp
	return nil
}

func (r *memRepo) ListVersions(_ context.Context, recipeIDs ...id.ID) ([]*Version, error) {
	want := make(map[id.ID]bool, len(recipeIDs))
	for _, rid := range recipeIDs {
		want[rid] = true
	}
	var out []*Version
	for _, v := range r.versions {
		if want[v.RecipeID] {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber < out[j].VersionNumber })
	return out, nil
}

func (r *memRepo) NextVersionNumber(_ context.Context, recipeID id.ID) (int, error) {
	n := 0
	for _, v := range r.versions {
		if v.RecipeID == recipeID && v.VersionNumber > n {
			n = v.VersionNumber
		}
	}
	return n + 1, nil
}

func (r *memRepo) TouchLastUsed(_ context.Context, recipeIDs []id.ID, at time.Time) error {
	for _, rid := range recipeIDs {
		if rec, ok := r.recipes[rid]; ok {
			rec.LastUsedAt = &at
			r.touched = append(r.touched, rid)
		}
	}
	return nil
}

type memItems map[id.ID]*item.Item

func (m memItems) GetActive(_ context.Context, itemID id.ID) (*item.Item, error) {
	it, ok := m[itemID]
	if !ok || !it.IsActive {
		return nil, apperror.NewNotFound("item", itemID.String())
	}
	cp := *it
	return &cp, nil
}

func (m memItems) add(sku string, cost string) *item.Item {
	it := item.NewItem(sku, sku, "kg")
	it.Cost = types.MustMoney(cost)
	m[it.ID] = it
	return it
}

type memWarehouses map[id.ID]*warehouse.Warehouse

func (m memWarehouses) Resolve(_ context.Context, warehouseID *id.ID) (*warehouse.Warehouse, error) {
	if warehouseID == nil {
		return nil, apperror.NewNotFound("warehouse", "default")
	}
	w, ok := m[*warehouseID]
	if !ok || !w.IsActive {
		return nil, apperror.NewNotFound("warehouse", warehouseID.String())
	}
	return w, nil
}

func q(s string) types.Quantity {
	v, err := types.ParseQuantity(s)
	if err != nil {
		panic(err)
	}
	return v
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService() (*Service, *memRepo, memItems, memWarehouses) {
	repo := newMemRepo()
	items := memItems{}
	whs := memWarehouses{}
	return NewService(repo, tx.Nop{}, items, whs), repo, items, whs
}

func TestRequiredQuantity(t *testing.T) {
	ing := Ingredient{Quantity: q("2"), WastePercent: d("10")}
	portion := Portion{Key: "large", Multiplier: d("1.5")}

	assert.Equal(t, q("9.9"), ing.Required(portion, decimal.NewFromInt(3)))
}

func TestPrepareVersionSnapshotsCost(t *testing.T) {
	ctx := context.Background()
	svc, _, items, _ := newTestService()
	flour := items.add("FLOUR", "2.50")
	cheese := items.add("CHEESE", "12")

	v, err := svc.PrepareVersion(ctx, VersionPayload{Ingredients: []IngredientInput{
		{ItemID: flour.ID, Quantity: q("0.2")},
		{ItemID: cheese.ID, Quantity: q("0.1"), WastePercent: d("5")},
	}}, "chef")
	require.NoError(t, err)

	// 0.2×2.5 + 0.1×1.05×12 = 0.5 + 1.26
	assert.True(t, d("1.76").Equal(v.IngredientTotalCost), "got %s", v.IngredientTotalCost)
	assert.Equal(t, "chef", v.CreatedBy)
	require.Len(t, v.Portions, 1)
	assert.Equal(t, StandardPortion, v.Portions[0].Key)
	assert.Equal(t, "kg", v.Ingredients[0].Unit)
	assert.True(t, d("2.50").Equal(v.Ingredients[0].UnitCost))

	items[flour.ID].Cost = d("100")
	assert.True(t, d("2.50").Equal(v.Ingredients[0].UnitCost), "snapshot is not re-derived")
}

func TestPrepareVersionValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, items, whs := newTestService()
	flour := items.add("FLOUR", "1")
	archived := items.add("OLD", "1")
	archived.IsActive = false
	closed := warehouse.NewWarehouse("CLOSED", "Closed", warehouse.TypeBar)
	closed.IsActive = false
	whs[closed.ID] = closed

	cases := []struct {
		name    string
		payload VersionPayload
		check   func(error) bool
	}{
		{"no ingredients", VersionPayload{}, func(err error) bool { return apperror.HasCode(err, apperror.CodeInvalidInput) }},
		{"zero quantity", VersionPayload{Ingredients: []IngredientInput{{ItemID: flour.ID}}}, func(err error) bool { return apperror.HasCode(err, apperror.CodeInvalidInput) }},
		{"waste above 100", VersionPayload{Ingredients: []IngredientInput{{ItemID: flour.ID, Quantity: q("1"), WastePercent: d("101")}}}, func(err error) bool { return apperror.HasCode(err, apperror.CodeInvalidInput) }},
		{"inactive item", VersionPayload{Ingredients: []IngredientInput{{ItemID: archived.ID, Quantity: q("1")}}}, apperror.IsNotFound},
		{"unknown item", VersionPayload{Ingredients: []IngredientInput{{ItemID: id.New(), Quantity: q("1")}}}, apperror.IsNotFound},
		{"inactive warehouse", VersionPayload{Ingredients: []IngredientInput{{ItemID: flour.ID, Quantity: q("1"), WarehouseID: &closed.ID}}}, apperror.IsNotFound},
		{"duplicate portion", VersionPayload{
			Ingredients: []IngredientInput{{ItemID: flour.ID, Quantity: q("1")}},
			Portions:    []Portion{{Key: "s", Multiplier: d("1")}, {Key: "s", Multiplier: d("2")}},
		}, func(err error) bool { return apperror.HasCode(err, apperror.CodeInvalidInput) }},
		{"zero multiplier", VersionPayload{
			Ingredients: []IngredientInput{{ItemID: flour.ID, Quantity: q("1")}},
			Portions:    []Portion{{Key: "s"}},
		}, func(err error) bool { return apperror.HasCode(err, apperror.CodeInvalidInput) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.PrepareVersion(ctx, tc.payload, "u")
			require.Error(t, err)
			assert.True(t, tc.check(err), "got %v", err)
		})
	}
}

func TestVersionsAndDefaultSwitch(t *testing.T) {
	ctx := context.Background()
	svc, repo, items, _ := newTestService()
	beef := items.add("BEEF", "10")
	menuItem := id.New()

	r, err := svc.Create(ctx, CreateCommand{
		Code: "burger", Name: "Burger", MenuItemID: &menuItem,
		Version: VersionPayload{Ingredients: []IngredientInput{{ItemID: beef.ID, Quantity: q("0.2")}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "BURGER", r.Code)
	assert.True(t, d("2").Equal(r.EstimatedCost))
	first := r.ActiveVersion()
	require.NotNil(t, first)
	assert.Equal(t, 1, first.VersionNumber)
	assert.True(t, first.IsDefault(r))

	r, second, err := svc.AddVersion(ctx, r.ID, VersionPayload{Ingredients: []IngredientInput{{ItemID: beef.ID, Quantity: q("0.3")}}}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, second.VersionNumber)
	assert.Equal(t, "v2", second.Label)
	assert.False(t, second.IsDefault(r))
	assert.True(t, d("2").Equal(r.EstimatedCost), "non-default version leaves the estimate alone")

	r, err = svc.SetDefaultVersion(ctx, r.ID, second.ID)
	require.NoError(t, err)
	assert.True(t, d("3").Equal(r.EstimatedCost))
	assert.Equal(t, second.ID, r.ActiveVersion().ID)

	defaults := 0
	for _, v := range r.Versions {
		if v.IsDefault(r) {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
	assert.Equal(t, second.ID, *repo.recipes[r.ID].DefaultVersionID)

	_, err = svc.SetDefaultVersion(ctx, r.ID, id.New())
	assert.True(t, apperror.IsNotFound(err))

	got, err := svc.GetByMenuItem(ctx, menuItem)
	require.NoError(t, err)
	assert.Len(t, got.Versions, 2)
}

func TestCreateRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	svc, _, items, _ := newTestService()
	beef := items.add("BEEF", "10")
	menuItem := id.New()
	payload := VersionPayload{Ingredients: []IngredientInput{{ItemID: beef.ID, Quantity: q("1")}}}

	_, err := svc.Create(ctx, CreateCommand{Code: "A", Name: "A", MenuItemID: &menuItem, Version: payload})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateCommand{Code: "a", Name: "A2", Version: payload})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	_, err = svc.Create(ctx, CreateCommand{Code: "B", Name: "B", MenuItemID: &menuItem, Version: payload})
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))
}

func TestActiveVersionFallsBackToFirst(t *testing.T) {
	r := NewRecipe("X", "X")
	v2 := &Version{ID: id.New(), VersionNumber: 2}
	v1 := &Version{ID: id.New(), VersionNumber: 1}
	r.Versions[v2.ID] = v2
	r.Versions[v1.ID] = v1

	assert.Equal(t, v1.ID, r.ActiveVersion().ID)

	dangling := id.New()
	r.DefaultVersionID = &dangling
	assert.Equal(t, v1.ID, r.ActiveVersion().ID)

	assert.Nil(t, NewRecipe("Y", "Y").ActiveVersion())
}

func TestResolvePortion(t *testing.T) {
	v := &Version{Portions: Portions{
		{Key: "small", Multiplier: d("0.5")},
		{Key: "standard", Multiplier: d("1")},
	}}
	assert.Equal(t, "standard", ResolvePortion(v, "").Key)
	assert.Equal(t, "small", ResolvePortion(v, "small").Key)

	noStandard := &Version{Portions: Portions{{Key: "half", Multiplier: d("0.5")}}}
	assert.Equal(t, "half", ResolvePortion(noStandard, "large").Key)
	assert.Equal(t, "half", ResolvePortion(noStandard, "").Key)
}

func TestCostBreakdownUsesLiveCost(t *testing.T) {
	ctx := context.Background()
	svc, _, items, _ := newTestService()
	beef := items.add("BEEF", "10")
	price := types.MustMoney("12")

	r, err := svc.Create(ctx, CreateCommand{
		Code: "STEAK", Name: "Steak", MenuItemPrice: &price,
		Version: VersionPayload{
			Ingredients: []IngredientInput{{ItemID: beef.ID, Quantity: q("0.3"), WastePercent: d("10")}},
			Portions:    []Portion{{Key: "standard", Multiplier: d("1")}, {Key: "double", Multiplier: d("2")}},
		},
	})
	require.NoError(t, err)

	items[beef.ID].Cost = d("20")

	b, err := svc.CostBreakdown(ctx, r.ID, nil, "double")
	require.NoError(t, err)
	require.Len(t, b.Lines, 1)
	assert.Equal(t, q("0.66"), b.Lines[0].Required)
	assert.True(t, d("13.2").Equal(b.Total), "got %s", b.Total)
	assert.True(t, d("6.6").Equal(b.SnapshotTotal), "got %s", b.SnapshotTotal)
	require.NotNil(t, b.FoodCostPercent)
	assert.True(t, d("110").Equal(*b.FoodCostPercent))

	pct, ok := r.FoodCostPercent()
	require.True(t, ok)
	assert.True(t, d("27.5").Equal(pct), "got %s", pct)
}

func TestTouchLastUsed(t *testing.T) {
	ctx := context.Background()
	svc, repo, items, _ := newTestService()
	beef := items.add("BEEF", "10")

	r, err := svc.Create(ctx, CreateCommand{Code: "A", Name: "A",
		Version: VersionPayload{Ingredients: []IngredientInput{{ItemID: beef.ID, Quantity: q("1")}}}})
	require.NoError(t, err)

	require.NoError(t, svc.TouchLastUsed(ctx, []id.ID{r.ID}))
	assert.NotNil(t, repo.recipes[r.ID].LastUsedAt)
	require.NoError(t, svc.TouchLastUsed(ctx, nil))
}
