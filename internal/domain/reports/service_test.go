package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restopos/internal/core/id"
	"restopos/internal/core/types"
	"restopos/internal/domain"
)

type stubRepo struct {
	low        []LowStockRow
	candidates []ExpiryCandidate
	recipes    []RecipeCost
	usage      []DailyUsage
	summary    Summary
	summaryErr error

	consumptionFrom  time.Time
	consumptionLimit int
	usageFrom        time.Time
	summaryCalls     int
}

func (r *stubRepo) LowStock(context.Context, domain.Page) ([]LowStockRow, error) {
	return r.low, nil
}

func (r *stubRepo) ExpiryCandidates(context.Context) ([]ExpiryCandidate, error) {
	return r.candidates, nil
}

func (r *stubRepo) Consumption(_ context.Context, from time.Time, limit int) ([]FastMovingRow, error) {
	r.consumptionFrom, r.consumptionLimit = from, limit
	return nil, nil
}

func (r *stubRepo) RecipeCosts(context.Context, domain.Page) ([]RecipeCost, error) {
	return r.recipes, nil
}

func (r *stubRepo) DailyUsage(_ context.Context, from time.Time) ([]DailyUsage, error) {
	r.usageFrom = from
	return r.usage, nil
}

func (r *stubRepo) Summary(context.Context) (*Summary, error) {
	r.summaryCalls++
	if r.summaryErr != nil {
		return nil, r.summaryErr
	}
	s := r.summary
	return &s, nil
}

type memCache struct{ value *Summary }

func (c *memCache) GetSummary(context.Context) (*Summary, bool) { return c.value, c.value != nil }
func (c *memCache) SetSummary(_ context.Context, s *Summary)    { c.value = s }

var fixedNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func newTestService(repo Repository, cache SummaryCache) *Service {
	svc := NewService(repo, cache, Options{})
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func q(units int64) types.Quantity { return types.NewQuantity(units) }

func money(s string) *types.Money {
	m := types.MustMoney(s)
	return &m
}

func TestLowStockDeficit(t *testing.T) {
	repo := &stubRepo{low: []LowStockRow{{SKU: "MILK", CurrentStock: q(2), ParLevel: q(10)}}}
	rows, err := newTestService(repo, nil).LowStock(context.Background(), domain.Page{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, q(8), rows[0].Deficit)
}

func TestExpiringSoon(t *testing.T) {
	restocked := func(daysAgo int) time.Time { return fixedNow.AddDate(0, 0, -daysAgo) }
	repo := &stubRepo{candidates: []ExpiryCandidate{
		{SKU: "FISH", LastRestockDate: restocked(1), ShelfLifeDays: 3},
		{SKU: "MILK", LastRestockDate: restocked(10), ShelfLifeDays: 7},
		{SKU: "RICE", LastRestockDate: restocked(1), ShelfLifeDays: 365},
		{SKU: "NONE", LastRestockDate: restocked(1), ShelfLifeDays: 0},
	}}

	rows, err := newTestService(repo, nil).ExpiringSoon(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "MILK", rows[0].SKU)
	assert.Equal(t, -3, rows[0].DaysLeft)
	assert.Equal(t, "FISH", rows[1].SKU)
	assert.Equal(t, 2, rows[1].DaysLeft)
	assert.Equal(t, fixedNow.AddDate(0, 0, 2), rows[1].ExpiresAt)
}

func TestFastMovingWindowAndLimit(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo, nil)

	_, err := svc.FastMoving(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 10, repo.consumptionLimit)
	assert.Equal(t, fixedNow.AddDate(0, 0, -30), repo.consumptionFrom)

	_, err = svc.FastMoving(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, 100, repo.consumptionLimit)
}

func TestFoodCost(t *testing.T) {
	repo := &stubRepo{recipes: []RecipeCost{
		{Code: "SALAD", MenuItemPrice: money("10"), EstimatedCost: types.MustMoney("2.5")},
		{Code: "STAFF", EstimatedCost: types.MustMoney("4")},
		{Code: "STEAK", MenuItemPrice: money("30"), EstimatedCost: types.MustMoney("12")},
		{Code: "FREE", MenuItemPrice: money("0"), EstimatedCost: types.MustMoney("1")},
	}}

	rows, err := newTestService(repo, nil).FoodCost(context.Background(), domain.Page{})
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "STEAK", rows[0].Code)
	assert.Equal(t, "40", rows[0].FoodCostPercent.String())
	assert.Equal(t, "18", rows[0].Margin.String())
	assert.Equal(t, "SALAD", rows[1].Code)
	assert.Equal(t, "25", rows[1].FoodCostPercent.String())
	assert.Nil(t, rows[2].FoodCostPercent)
	assert.Nil(t, rows[3].FoodCostPercent)
}

func TestAnomalies(t *testing.T) {
	today := fixedNow.Truncate(24 * time.Hour)
	day := func(ago int) time.Time { return today.AddDate(0, 0, -ago) }
	spike, steady, sporadic, fresh := id.New(), id.New(), id.New(), id.New()

	repo := &stubRepo{usage: []DailyUsage{
		{ItemID: spike, SKU: "SPIKE", Day: day(3), Consumed: q(2)},
		{ItemID: spike, SKU: "SPIKE", Day: day(1), Consumed: q(4)},
		{ItemID: spike, SKU: "SPIKE", Day: day(0), Consumed: q(9)},
		{ItemID: steady, SKU: "STEADY", Day: day(4), Consumed: q(6)},
		{ItemID: steady, SKU: "STEADY", Day: day(3), Consumed: q(6)},
		{ItemID: steady, SKU: "STEADY", Day: day(2), Consumed: q(6)},
		{ItemID: steady, SKU: "STEADY", Day: day(1), Consumed: q(6)},
		{ItemID: steady, SKU: "STEADY", Day: day(0), Consumed: q(8)},
		{ItemID: sporadic, SKU: "SPORADIC", Day: day(2), Consumed: q(8)},
		{ItemID: sporadic, SKU: "SPORADIC", Day: day(0), Consumed: q(4)},
		{ItemID: fresh, SKU: "FRESH", Day: day(0), Consumed: q(50)},
	}}

	svc := NewService(repo, nil, Options{WindowDays: 4})
	svc.now = func() time.Time { return fixedNow }
	rows, err := svc.Anomalies(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2, "8 is not above 1.5 × 6 and items without history are skipped")

	assert.Equal(t, "SPIKE", rows[0].SKU)
	assert.Equal(t, q(9), rows[0].TodayUsage)
	assert.Equal(t, "1.5000", rows[0].DailyAverage.String())
	assert.Equal(t, "6", rows[0].Ratio.String())

	// One busy day in four averages to 2 per day, not 8.
	assert.Equal(t, "SPORADIC", rows[1].SKU)
	assert.Equal(t, q(2), rows[1].DailyAverage)
	assert.Equal(t, "2", rows[1].Ratio.String())

	assert.Equal(t, today.AddDate(0, 0, -4), repo.usageFrom)
}

func TestAnomaliesUseDefaultWindow(t *testing.T) {
	repo := &stubRepo{}
	_, err := newTestService(repo, nil).Anomalies(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Truncate(24*time.Hour).AddDate(0, 0, -30), repo.usageFrom)
}

func TestSummaryIsCached(t *testing.T) {
	repo := &stubRepo{summary: Summary{Items: 3, StockValue: types.MustMoney("120.5")}}
	cache := &memCache{}
	svc := newTestService(repo, cache)

	first, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), first.Items)
	assert.Equal(t, fixedNow, first.GeneratedAt)

	_, err = svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.summaryCalls)

	cache.value = nil
	repo.summaryErr = errors.New("db down")
	_, err = svc.Summary(context.Background())
	assert.Error(t, err)
}
