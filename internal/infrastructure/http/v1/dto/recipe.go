package dto

import (
	"github.com/shopspring/decimal"

	"restopos/internal/core/id"
	"restopos/internal/core/types"
	"restopos/internal/domain/catalogs/recipe"
)

// IngredientRequest is one ingredient line of a recipe version.
type IngredientRequest struct {
	ItemID       id.ID           `json:"itemId" binding:"required"`
	Quantity     types.Quantity  `json:"quantity"`
	Unit         string          `json:"unit"`
	WastePercent decimal.Decimal `json:"wastePercent"`
	WarehouseID  *id.ID          `json:"warehouseId"`
}

// RecipeVersionRequest is the content of a recipe version.
type RecipeVersionRequest struct {
	Label       string              `json:"label"`
	Notes       string              `json:"notes"`
	Ingredients []IngredientRequest `json:"ingredients" binding:"required,min=1,dive"`
	Portions    []recipe.Portion    `json:"portions"`
}

func (r *RecipeVersionRequest) ToPayload() recipe.VersionPayload {
	ingredients := make([]recipe.IngredientInput, len(r.Ingredients))
	for i, in := range r.Ingredients {
		ingredients[i] = recipe.IngredientInput{
			ItemID:       in.ItemID,
			Quantity:     in.Quantity,
			Unit:         in.Unit,
			WastePercent: in.WastePercent,
			WarehouseID:  in.WarehouseID,
		}
	}
	return recipe.VersionPayload{
		Label:       r.Label,
		Notes:       r.Notes,
		Ingredients: ingredients,
		Portions:    r.Portions,
	}
}

// CreateRecipeRequest creates a recipe with its first version.
type CreateRecipeRequest struct {
	Code          string               `json:"code" binding:"required"`
	Name          string               `json:"name" binding:"required"`
	MenuItemID    *id.ID               `json:"menuItemId"`
	MenuItemName  string               `json:"menuItemName"`
	MenuItemPrice *types.Money         `json:"menuItemPrice"`
	Category      *string              `json:"category"`
	Description   *string              `json:"description"`
	Version       RecipeVersionRequest `json:"version"`
}

func (r *CreateRecipeRequest) ToCommand() recipe.CreateCommand {
	return recipe.CreateCommand{
		Code:          r.Code,
		Name:          r.Name,
		MenuItemID:    r.MenuItemID,
		MenuItemName:  r.MenuItemName,
		MenuItemPrice: r.MenuItemPrice,
		Category:      r.Category,
		Description:   r.Description,
		Version:       r.Version.ToPayload(),
	}
}

// UpdateRecipeRequest changes header fields that are present.
type UpdateRecipeRequest struct {
	Version       int          `json:"version" binding:"required,min=1"`
	Name          *string      `json:"name"`
	MenuItemID    *id.ID       `json:"menuItemId"`
	MenuItemName  *string      `json:"menuItemName"`
	MenuItemPrice *types.Money `json:"menuItemPrice"`
	Category      *string      `json:"category"`
	Description   *string      `json:"description"`
}

func (r *UpdateRecipeRequest) ToCommand() recipe.UpdateCommand {
	return recipe.UpdateCommand{
		Version:       r.Version,
		Name:          r.Name,
		MenuItemID:    r.MenuItemID,
		MenuItemName:  r.MenuItemName,
		MenuItemPrice: r.MenuItemPrice,
		Category:      r.Category,
		Description:   r.Description,
	}
}

// AddVersionRequest adds a version, optionally making it the default.
type AddVersionRequest struct {
	RecipeVersionRequest
	MakeDefault bool `json:"makeDefault"`
}

// --- Response DTOs ---

// RecipeResponse is a recipe with its versions in version order.
type RecipeResponse struct {
	*recipe.Recipe
	FoodCostPercent *decimal.Decimal  `json:"foodCostPercent,omitempty"`
	Versions        []*recipe.Version `json:"versions"`
}

func FromRecipe(r *recipe.Recipe) *RecipeResponse {
	out := &RecipeResponse{Recipe: r, Versions: r.SortedVersions()}
	if pct, ok := r.FoodCostPercent(); ok {
		out.FoodCostPercent = &pct
	}
	return out
}

// AddVersionResponse returns the recipe and the version just added.
type AddVersionResponse struct {
	Recipe  *RecipeResponse `json:"recipe"`
	Version *recipe.Version `json:"version"`
}
