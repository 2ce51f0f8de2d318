// Package recipe provides versioned recipes linking menu items to inventory ingredients.
package recipe

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"restopos/internal/core/apperror"
	"restopos/internal/core/entity"
	"restopos/internal/core/id"
	"restopos/internal/core/types"
)

// StandardPortion is the portion key used when an order line names none.
const StandardPortion = "standard"

var hundred = decimal.NewFromInt(100)

// Portion is a named serving-size multiplier.
type Portion struct {
	Key        string          `json:"key"`
	Label      string          `json:"label"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// DefaultPortions is applied when a version declares no portions.
func DefaultPortions() []Portion {
	return []Portion{{Key: StandardPortion, Label: "Standard", Multiplier: decimal.NewFromInt(1)}}
}

// Ingredient is one inventory item consumed by a version.
type Ingredient struct {
	ItemID   id.ID          `json:"itemId"`
	ItemName string         `json:"itemName"`
	Quantity types.Quantity `json:"quantity"`
	Unit     string         `json:"unit"`

	// WastePercent in [0, 100] increases effective consumption.
	WastePercent decimal.Decimal `json:"wastePercent"`

	// WarehouseID overrides the item's default warehouse for this ingredient.
	WarehouseID *id.ID `json:"warehouseId,omitempty"`

	// UnitCost is the item cost captured when the version was saved.
	UnitCost types.Money `json:"unitCost"`
}

// WasteFactor is 1 + waste/100.
func (i Ingredient) WasteFactor() decimal.Decimal {
	return decimal.NewFromInt(1).Add(i.WastePercent.Div(hundred))
}

// Required returns the quantity consumed for lineQty servings of the portion:
// quantity × multiplier × lineQty × (1 + waste/100).
func (i Ingredient) Required(portion Portion, lineQty decimal.Decimal) types.Quantity {
	return i.Quantity.Mul(portion.Multiplier.Mul(lineQty).Mul(i.WasteFactor()))
}

// Cost returns quantity × (1 + waste/100) × unitCost.
func (i Ingredient) Cost(unitCost types.Money) types.Money {
	return i.Quantity.Decimal().Mul(i.WasteFactor()).Mul(unitCost).Round(types.CostPrecision)
}

// Ingredients is stored as a JSONB column.
type Ingredients []Ingredient

// Portions is stored as a JSONB column.
type Portions []Portion

// Scan implements sql.Scanner.
func (l *Ingredients) Scan(src any) error { return scanJSON(src, l) }

// Scan implements sql.Scanner.
func (p *Portions) Scan(src any) error { return scanJSON(src, p) }

func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	}
	return fmt.Errorf("unsupported json source %T", src)
}

// Value implements driver.Valuer.
func (l Ingredients) Value() (driver.Value, error) { return valueJSON(l) }

// Value implements driver.Valuer.
func (p Portions) Value() (driver.Value, error) { return valueJSON(p) }

func valueJSON(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Version is an immutable snapshot of a recipe's ingredients and portions.
type Version struct {
	ID            id.ID  `db:"id" json:"id"`
	RecipeID      id.ID  `db:"recipe_id" json:"recipeId"`
	VersionNumber int    `db:"version_number" json:"versionNumber"`
	Label         string `db:"label" json:"label"`

	Ingredients Ingredients `db:"ingredients" json:"ingredients"`
	Portions    Portions    `db:"portions" json:"portions"`

	IngredientTotalCost types.Money `db:"ingredient_total_cost" json:"ingredientTotalCost"`

	Notes     string    `db:"notes" json:"notes,omitempty"`
	CreatedBy string    `db:"created_by" json:"createdBy"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// IsDefault reports whether the recipe's default pointer references this version.
func (v *Version) IsDefault(r *Recipe) bool {
	return r != nil && r.DefaultVersionID != nil && *r.DefaultVersionID == v.ID
}

// Portion finds a portion by key.
func (v *Version) Portion(key string) (Portion, bool) {
	for _, p := range v.Portions {
		if p.Key == key {
			return p, true
		}
	}
	return Portion{}, false
}

// ResolvePortion returns the requested portion (standard when key is empty),
// falling back to the version's first portion.
func ResolvePortion(v *Version, key string) Portion {
	key = strings.TrimSpace(key)
	if key == "" {
		key = StandardPortion
	}
	if p, ok := v.Portion(key); ok {
		return p
	}
	if len(v.Portions) > 0 {
		return v.Portions[0]
	}
	return DefaultPortions()[0]
}

// Recipe links a menu item to its ingredient versions.
type Recipe struct {
	entity.Catalog

	// MenuItemID is a weak reference to the externally owned menu item.
	MenuItemID    *id.ID       `db:"menu_item_id" json:"menuItemId,omitempty"`
	MenuItemName  string       `db:"menu_item_name" json:"menuItemName,omitempty"`
	MenuItemPrice *types.Money `db:"menu_item_price" json:"menuItemPrice,omitempty"`

	Category    *string `db:"category" json:"category,omitempty"`
	Description *string `db:"description" json:"description,omitempty"`

	DefaultVersionID *id.ID      `db:"default_version_id" json:"defaultVersionId,omitempty"`
	EstimatedCost    types.Money `db:"estimated_cost" json:"estimatedCost"`
	LastUsedAt       *time.Time  `db:"last_used_at" json:"lastUsedAt,omitempty"`

	Versions map[id.ID]*Version `db:"-" json:"-"`
}

// NewRecipe creates an active recipe without versions.
func NewRecipe(code, name string) *Recipe {
	r := &Recipe{
		Catalog:       entity.NewCatalog(code, name),
		EstimatedCost: types.Zero(),
		Versions:      make(map[id.ID]*Version),
	}
	r.Code = entity.NormalizeCode(r.Code)
	return r
}

// SortedVersions returns versions ordered by version number.
func (r *Recipe) SortedVersions() []*Version {
	out := make([]*Version, 0, len(r.Versions))
	for _, v := range r.Versions {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber < out[j].VersionNumber })
	return out
}

// ActiveVersion returns the default version, else the first by number.
func (r *Recipe) ActiveVersion() *Version {
	if r.DefaultVersionID != nil {
		if v, ok := r.Versions[*r.DefaultVersionID]; ok {
			return v
		}
	}
	if sorted := r.SortedVersions(); len(sorted) > 0 {
		return sorted[0]
	}
	return nil
}

// AttachVersion adds v to the recipe. The first version, or any version attached with
// makeDefault, becomes the default and sets EstimatedCost from its snapshot.
func AttachVersion(r *Recipe, v *Version, makeDefault bool) {
	if r.Versions == nil {
		r.Versions = make(map[id.ID]*Version)
	}
	v.RecipeID = r.ID
	r.Versions[v.ID] = v
	if makeDefault || r.DefaultVersionID == nil {
		r.DefaultVersionID = &v.ID
		r.EstimatedCost = v.IngredientTotalCost
	}
}

// SetDefault points the recipe at an attached version.
func (r *Recipe) SetDefault(versionID id.ID) error {
	v, ok := r.Versions[versionID]
	if !ok {
		return apperror.NewNotFound("recipe version", versionID.String())
	}
	r.DefaultVersionID = &v.ID
	r.EstimatedCost = v.IngredientTotalCost
	return nil
}

// FoodCostPercent is estimatedCost / menu price × 100. ok is false without a positive price.
func (r *Recipe) FoodCostPercent() (decimal.Decimal, bool) {
	if r.MenuItemPrice == nil || !r.MenuItemPrice.IsPositive() {
		return decimal.Zero, false
	}
	return r.EstimatedCost.Div(*r.MenuItemPrice).Mul(hundred).Round(2), true
}

func (r *Recipe) Validate() error {
	if err := r.Catalog.Validate(); err != nil {
		return err
	}
	if r.MenuItemPrice != nil && r.MenuItemPrice.IsNegative() {
		return apperror.NewValidation("menu item price must not be negative").WithDetail("field", "menuItemPrice")
	}
	return nil
}
