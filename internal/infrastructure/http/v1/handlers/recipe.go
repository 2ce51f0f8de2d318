package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"restopos/internal/core/id"
	"restopos/internal/domain"
	"restopos/internal/domain/catalogs/recipe"
	"restopos/internal/infrastructure/http/v1/dto"
)

// RecipeService is the recipe catalog as seen by HTTP.
type RecipeService interface {
	Create(ctx context.Context, cmd recipe.CreateCommand) (*recipe.Recipe, error)
	Update(ctx context.Context, recipeID id.ID, cmd recipe.UpdateCommand) (*recipe.Recipe, error)
	Archive(ctx context.Context, recipeID id.ID) (*recipe.Recipe, error)
	Get(ctx context.Context, recipeID id.ID) (*recipe.Recipe, error)
	GetByMenuItem(ctx context.Context, menuItemID id.ID) (*recipe.Recipe, error)
	List(ctx context.Context, filter recipe.Filter) (domain.ListResult[*recipe.Recipe], error)
	AddVersion(ctx context.Context, recipeID id.ID, payload recipe.VersionPayload, makeDefault bool) (*recipe.Recipe, *recipe.Version, error)
	SetDefaultVersion(ctx context.Context, recipeID, versionID id.ID) (*recipe.Recipe, error)
	CostBreakdown(ctx context.Context, recipeID id.ID, versionID *id.ID, portionKey string) (*recipe.CostBreakdown, error)
}

// RecipeHandler handles /recipes.
type RecipeHandler struct {
	*BaseHandler
	service RecipeService
}

func NewRecipeHandler(base *BaseHandler, service RecipeService) *RecipeHandler {
	return &RecipeHandler{BaseHandler: base, service: service}
}

// List handles GET /recipes
func (h *RecipeHandler) List(c *gin.Context) {
	menuItemID, ok := h.QueryID(c, "menuItemId")
	if !ok {
		return
	}
	filter := recipe.Filter{
		ListFilter: h.ListFilter(c),
		Category:   c.Query("category"),
		MenuItemID: menuItemID,
	}
	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	List(c, result)
}

// Get handles GET /recipes/:id
func (h *RecipeHandler) Get(c *gin.Context) {
	recipeID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	r, err := h.service.Get(c.Request.Context(), recipeID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRecipe(r))
}

// ByMenuItem handles GET /recipes/by-menu-item/:menuItemId
func (h *RecipeHandler) ByMenuItem(c *gin.Context) {
	menuItemID, ok := h.PathID(c, "menuItemId")
	if !ok {
		return
	}
	r, err := h.service.GetByMenuItem(c.Request.Context(), menuItemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRecipe(r))
}

// Create handles POST /recipes
func (h *RecipeHandler) Create(c *gin.Context) {
	var req dto.CreateRecipeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	r, err := h.service.Create(c.Request.Context(), req.ToCommand())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromRecipe(r))
}

// Update handles PUT /recipes/:id
func (h *RecipeHandler) Update(c *gin.Context) {
	recipeID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateRecipeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	r, err := h.service.Update(c.Request.Context(), recipeID, req.ToCommand())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRecipe(r))
}

// AddVersion handles POST /recipes/:id/versions
func (h *RecipeHandler) AddVersion(c *gin.Context) {
	recipeID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	var req dto.AddVersionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	r, v, err := h.service.AddVersion(c.Request.Context(), recipeID, req.ToPayload(), req.MakeDefault)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.AddVersionResponse{Recipe: dto.FromRecipe(r), Version: v})
}

// SetDefaultVersion handles POST /recipes/:id/versions/:versionId/default
func (h *RecipeHandler) SetDefaultVersion(c *gin.Context) {
	recipeID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	versionID, ok := h.PathID(c, "versionId")
	if !ok {
		return
	}
	r, err := h.service.SetDefaultVersion(c.Request.Context(), recipeID, versionID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRecipe(r))
}

// Cost handles GET /recipes/:id/cost?versionId=&portion=
func (h *RecipeHandler) Cost(c *gin.Context) {
	recipeID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	versionID, ok := h.QueryID(c, "versionId")
	if !ok {
		return
	}
	breakdown, err := h.service.CostBreakdown(c.Request.Context(), recipeID, versionID, c.Query("portion"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, breakdown)
}

// Archive handles DELETE /recipes/:id
func (h *RecipeHandler) Archive(c *gin.Context) {
	recipeID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	r, err := h.service.Archive(c.Request.Context(), recipeID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRecipe(r))
}
