package reports

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"restopos/internal/core/apperror"
	"restopos/internal/core/id"
	"restopos/internal/core/types"
	"restopos/internal/domain"
)

// Options tune the analytics windows.
type Options struct {
	// WindowDays is the look-back for fast-moving items and usage anomalies.
	WindowDays int
	// AnomalyFactor flags usage above factor × the trailing daily average.
	AnomalyFactor float64
	// ExpiryHorizonDays is the default horizon of ExpiringSoon.
	ExpiryHorizonDays int
}

func DefaultOptions() Options {
	return Options{WindowDays: 30, AnomalyFactor: 1.5, ExpiryHorizonDays: 3}
}

// Service provides report generation operations.
type Service struct {
	repo  Repository
	cache SummaryCache
	opts  Options
	now   func() time.Time
}

// NewService creates a new reports service. cache may be nil.
func NewService(repo Repository, cache SummaryCache, opts Options) *Service {
	def := DefaultOptions()
	if opts.WindowDays <= 0 {
		opts.WindowDays = def.WindowDays
	}
	if opts.AnomalyFactor <= 0 {
		opts.AnomalyFactor = def.AnomalyFactor
	}
	if opts.ExpiryHorizonDays <= 0 {
		opts.ExpiryHorizonDays = def.ExpiryHorizonDays
	}
	return &Service{
		repo:  repo,
		cache: cache,
		opts:  opts,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) LowStock(ctx context.Context, page domain.Page) ([]LowStockRow, error) {
	rows, err := s.repo.LowStock(ctx, page.Normalize())
	if err != nil {
		return nil, fmt.Errorf("get low stock report: %w", err)
	}
	for i := range rows {
		rows[i].Deficit = rows[i].ParLevel - rows[i].CurrentStock
	}
	return rows, nil
}

// ExpiringSoon lists items whose shelf life ends within days (the configured
// horizon when days <= 0). Expired items are included with negative DaysLeft.
func (s *Service) ExpiringSoon(ctx context.Context, days int) ([]ExpiringRow, error) {
	if days <= 0 {
		days = s.opts.ExpiryHorizonDays
	}
	candidates, err := s.repo.ExpiryCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("get expiry candidates: %w", err)
	}
	return expiring(candidates, s.now(), days), nil
}

func expiring(candidates []ExpiryCandidate, now time.Time, days int) []ExpiringRow {
	horizon := time.Duration(days) * 24 * time.Hour
	out := make([]ExpiringRow, 0)
	for _, c := range candidates {
		if c.ShelfLifeDays <= 0 {
			continue
		}
		expiresAt := c.LastRestockDate.AddDate(0, 0, c.ShelfLifeDays)
		left := expiresAt.Sub(now)
		if left > horizon {
			continue
		}
		out = append(out, ExpiringRow{
			ExpiryCandidate: c,
			ExpiresAt:       expiresAt,
			DaysLeft:        int(math.Floor(left.Hours() / 24)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out
}

// FastMoving ranks items by outflow over the window.
func (s *Service) FastMoving(ctx context.Context, limit int) ([]FastMovingRow, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	from := s.now().AddDate(0, 0, -s.opts.WindowDays)
	rows, err := s.repo.Consumption(ctx, from, limit)
	if err != nil {
		return nil, fmt.Errorf("get consumption: %w", err)
	}
	return rows, nil
}

// FoodCost reports estimatedCost / menu price × 100 per recipe, highest share first.
func (s *Service) FoodCost(ctx context.Context, page domain.Page) ([]FoodCostRow, error) {
	recipes, err := s.repo.RecipeCosts(ctx, page.Normalize())
	if err != nil {
		return nil, fmt.Errorf("get recipe costs: %w", err)
	}
	return foodCost(recipes), nil
}

var hundred = decimal.NewFromInt(100)

func foodCost(recipes []RecipeCost) []FoodCostRow {
	out := make([]FoodCostRow, 0, len(recipes))
	for _, r := range recipes {
		row := FoodCostRow{RecipeCost: r}
		if r.MenuItemPrice != nil && r.MenuItemPrice.IsPositive() {
			pct := r.EstimatedCost.Div(*r.MenuItemPrice).Mul(hundred).Round(2)
			margin := r.MenuItemPrice.Sub(r.EstimatedCost).Round(2)
			row.FoodCostPercent = &pct
			row.Margin = &margin
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].FoodCostPercent, out[j].FoodCostPercent
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		return a.GreaterThan(*b)
	})
	return out
}

// Anomalies flags items whose usage today exceeds factor × their trailing daily average.
func (s *Service) Anomalies(ctx context.Context) ([]AnomalyRow, error) {
	now := s.now()
	today := now.Truncate(24 * time.Hour)
	usage, err := s.repo.DailyUsage(ctx, today.AddDate(0, 0, -s.opts.WindowDays))
	if err != nil {
		return nil, fmt.Errorf("get daily usage: %w", err)
	}
	return anomalies(usage, today, s.opts.WindowDays, decimal.NewFromFloat(s.opts.AnomalyFactor)), nil
}

// anomalies compares today's usage with the average over the whole
// look-back window. Days without usage count as zero.
func anomalies(usage []DailyUsage, today time.Time, windowDays int, factor decimal.Decimal) []AnomalyRow {
	type acc struct {
		row       AnomalyRow
		pastTotal types.Quantity
	}
	byItem := make(map[id.ID]*acc)
	for _, u := range usage {
		a, ok := byItem[u.ItemID]
		if !ok {
			a = &acc{row: AnomalyRow{ItemID: u.ItemID, SKU: u.SKU, Name: u.Name}}
			byItem[u.ItemID] = a
		}
		if !u.Day.Before(today) {
			a.row.TodayUsage += u.Consumed
			continue
		}
		a.pastTotal += u.Consumed
	}

	days := decimal.NewFromInt(int64(windowDays))
	out := make([]AnomalyRow, 0)
	for _, a := range byItem {
		if windowDays <= 0 || a.pastTotal <= 0 || a.row.TodayUsage <= 0 {
			continue
		}
		avg := a.pastTotal.Decimal().Div(days)
		if !a.row.TodayUsage.Decimal().GreaterThan(avg.Mul(factor)) {
			continue
		}
		a.row.DailyAverage = types.NewQuantityFromDecimal(avg)
		a.row.Ratio = a.row.TodayUsage.Decimal().Div(avg).Round(2)
		out = append(out, a.row)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Ratio.Equal(out[j].Ratio) {
			return out[i].Ratio.GreaterThan(out[j].Ratio)
		}
		return out[i].SKU < out[j].SKU
	})
	return out
}

// Summary returns the dashboard headline, cached for a short time.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	if s.cache != nil {
		if cached, ok := s.cache.GetSummary(ctx); ok {
			return cached, nil
		}
	}
	sum, err := s.repo.Summary(ctx)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("get summary: %w", err))
	}
	sum.GeneratedAt = s.now()
	if s.cache != nil {
		s.cache.SetSummary(ctx, sum)
	}
	return sum, nil
}
