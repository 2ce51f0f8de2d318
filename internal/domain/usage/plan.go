package usage

import (
	"sort"

	"github.com/shopspring/decimal"

	"restopos/internal/core/id"
	"restopos/internal/core/types"
	"restopos/internal/domain/catalogs/recipe"
)

// Demand is one ingredient requirement of one order line.
type Demand struct {
	ItemID   id.ID
	Override *id.ID
	Required types.Quantity
	RecipeID id.ID
	Source   Source
}

// Plan is the resolved ingredient demand of an order.
type Plan struct {
	Demands      []Demand
	RecipeIDs    []id.ID
	LinesSkipped int
}

// BuildPlan expands order lines into ingredient demands. Lines without an active
// recipe or version are counted as skipped.
func BuildPlan(order OrderCreated, recipes map[id.ID]*recipe.Recipe) Plan {
	var plan Plan
	used := make(map[id.ID]struct{})

	for _, line := range order.Lines {
		r, ok := recipes[line.MenuItemID]
		if !ok {
			plan.LinesSkipped++
			continue
		}
		v := r.ActiveVersion()
		if v == nil || len(v.Ingredients) == 0 {
			plan.LinesSkipped++
			continue
		}
		portion := recipe.ResolvePortion(v, line.PortionKey)

		name := line.MenuItemName
		if name == "" {
			name = r.MenuItemName
		}
		if name == "" {
			name = r.Name
		}
		src := Source{
			MenuItemID: line.MenuItemID,
			MenuItem:   name,
			Portion:    portion.Key,
			Qty:        line.Qty.String(),
		}

		for _, ing := range v.Ingredients {
			plan.Demands = append(plan.Demands, Demand{
				ItemID:   ing.ItemID,
				Override: ing.WarehouseID,
				Required: ing.Required(portion, line.Qty),
				RecipeID: r.ID,
				Source:   src,
			})
		}
		if _, seen := used[r.ID]; !seen {
			used[r.ID] = struct{}{}
			plan.RecipeIDs = append(plan.RecipeIDs, r.ID)
		}
	}
	return plan
}

// BucketKey identifies one stock row.
type BucketKey struct {
	ItemID      id.ID
	WarehouseID id.ID
}

// Bucket is the aggregated demand against one stock row.
type Bucket struct {
	BucketKey
	Required types.Quantity
	Sources  []Source
}

// Aggregate sums demands per (item, resolved warehouse) so each stock row is
// touched once. Demands whose warehouse cannot be resolved are returned separately.
func Aggregate(demands []Demand, resolve func(Demand) (id.ID, bool)) (buckets []*Bucket, unresolved []Demand) {
	index := make(map[BucketKey]*Bucket)
	for _, d := range demands {
		whID, ok := resolve(d)
		if !ok {
			unresolved = append(unresolved, d)
			continue
		}
		key := BucketKey{ItemID: d.ItemID, WarehouseID: whID}
		b, ok := index[key]
		if !ok {
			b = &Bucket{BucketKey: key}
			index[key] = b
			buckets = append(buckets, b)
		}
		b.Required += d.Required
		b.Sources = mergeSource(b.Sources, d.Source)
	}
	return buckets, unresolved
}

// mergeSource folds a line into the source list, summing identical menu item and portion pairs.
func mergeSource(sources []Source, src Source) []Source {
	for i := range sources {
		s := &sources[i]
		if s.MenuItemID == src.MenuItemID && s.Portion == src.Portion {
			a, _ := decimal.NewFromString(s.Qty)
			b, _ := decimal.NewFromString(src.Qty)
			s.Qty = a.Add(b).String()
			return sources
		}
	}
	return append(sources, src)
}

// DistinctItems returns the item ids of the buckets in a stable order.
func DistinctItems(buckets []*Bucket) []id.ID {
	seen := make(map[id.ID]struct{}, len(buckets))
	var out []id.ID
	for _, b := range buckets {
		if _, ok := seen[b.ItemID]; ok {
			continue
		}
		seen[b.ItemID] = struct{}{}
		out = append(out, b.ItemID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
