package reports

import (
	"context"
	"time"

	"restopos/internal/domain"
)

// Repository defines report data access interface.
type Repository interface {
	// LowStock returns active, alert-enabled items with parLevel > 0 and currentStock <= parLevel.
	LowStock(ctx context.Context, page domain.Page) ([]LowStockRow, error)

	// ExpiryCandidates returns active items with expiry tracking, a shelf life and a restock date.
	ExpiryCandidates(ctx context.Context) ([]ExpiryCandidate, error)

	// Consumption sums |delta| of outflow movements since from, largest first.
	Consumption(ctx context.Context, from time.Time, limit int) ([]FastMovingRow, error)

	// RecipeCosts returns active recipes with their menu prices.
	RecipeCosts(ctx context.Context, page domain.Page) ([]RecipeCost, error)

	// DailyUsage returns usage movements since from, summed per item and UTC day.
	DailyUsage(ctx context.Context, from time.Time) ([]DailyUsage, error)

	Summary(ctx context.Context) (*Summary, error)
}

// SummaryCache holds the dashboard summary for a short time.
type SummaryCache interface {
	GetSummary(ctx context.Context) (*Summary, bool)
	SetSummary(ctx context.Context, s *Summary)
}
