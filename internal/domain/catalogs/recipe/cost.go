package recipe

import (
	"context"

	"github.com/shopspring/decimal"

	"restopos/internal/core/apperror"
	"restopos/internal/core/id"
	"restopos/internal/core/types"
)

// CostLine is the live cost of one ingredient for one portion.
type CostLine struct {
	ItemID       id.ID           `json:"itemId"`
	ItemName     string          `json:"itemName"`
	Unit         string          `json:"unit"`
	Required     types.Quantity  `json:"required"`
	WastePercent decimal.Decimal `json:"wastePercent"`
	SnapshotCost types.Money     `json:"snapshotUnitCost"`
	CurrentCost  types.Money     `json:"currentUnitCost"`
	LineCost     types.Money     `json:"lineCost"`
	// Missing is set when the item has been archived since the version was saved.
	Missing bool `json:"missing,omitempty"`
}

// CostBreakdown prices a version at current item costs.
type CostBreakdown struct {
	RecipeID      id.ID        `json:"recipeId"`
	VersionID     id.ID        `json:"versionId"`
	VersionNumber int          `json:"versionNumber"`
	Portion       Portion      `json:"portion"`
	Lines         []CostLine   `json:"lines"`
	Total         types.Money  `json:"total"`
	SnapshotTotal types.Money  `json:"snapshotTotal"`
	MenuItemPrice *types.Money `json:"menuItemPrice,omitempty"`
	// FoodCostPercent is Total / MenuItemPrice × 100.
	FoodCostPercent *decimal.Decimal `json:"foodCostPercent,omitempty"`
}

// CostBreakdown prices one portion of a version (the active one when versionID is nil)
// at the items' current costs.
func (s *Service) CostBreakdown(ctx context.Context, recipeID id.ID, versionID *id.ID, portionKey string) (*CostBreakdown, error) {
	r, err := s.Get(ctx, recipeID)
	if err != nil {
		return nil, err
	}

	var v *Version
	if versionID != nil && !id.IsNil(*versionID) {
		found, ok := r.Versions[*versionID]
		if !ok {
			return nil, apperror.NewNotFound("recipe version", versionID.String())
		}
		v = found
	} else {
		v = r.ActiveVersion()
	}
	if v == nil {
		return nil, apperror.NewNotFound("recipe version", recipeID.String()).WithDetail("reason", "recipe has no versions")
	}

	portion := ResolvePortion(v, portionKey)
	one := decimal.NewFromInt(1)

	out := &CostBreakdown{
		RecipeID:      r.ID,
		VersionID:     v.ID,
		VersionNumber: v.VersionNumber,
		Portion:       portion,
		Total:         types.Zero(),
		SnapshotTotal: types.Zero(),
		MenuItemPrice: r.MenuItemPrice,
	}

	for _, ing := range v.Ingredients {
		line := CostLine{
			ItemID:       ing.ItemID,
			ItemName:     ing.ItemName,
			Unit:         ing.Unit,
			Required:     ing.Required(portion, one),
			WastePercent: ing.WastePercent,
			SnapshotCost: ing.UnitCost,
			CurrentCost:  ing.UnitCost,
		}

		it, err := s.items.GetActive(ctx, ing.ItemID)
		switch {
		case err == nil:
			line.CurrentCost = it.Cost
			line.ItemName = it.Name
		case apperror.IsNotFound(err):
			line.Missing = true
		default:
			return nil, err
		}

		line.LineCost = types.LineTotal(line.Required, line.CurrentCost)
		out.Lines = append(out.Lines, line)
		out.Total = out.Total.Add(line.LineCost)
		out.SnapshotTotal = out.SnapshotTotal.Add(types.LineTotal(line.Required, line.SnapshotCost))
	}

	if r.MenuItemPrice != nil && r.MenuItemPrice.IsPositive() {
		pct := out.Total.Div(*r.MenuItemPrice).Mul(hundred).Round(2)
		out.FoodCostPercent = &pct
	}
	return out, nil
}
