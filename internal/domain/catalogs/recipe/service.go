package recipe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"restopos/internal/core/apperror"
	appctx "restopos/internal/core/context"
	"restopos/internal/core/id"
	"restopos/internal/core/tx"
	"restopos/internal/core/types"
	"restopos/internal/domain"
	"restopos/internal/domain/catalogs/item"
	"restopos/internal/domain/catalogs/warehouse"
	"restopos/pkg/logger"
)

// ItemReader loads ingredient items.
type ItemReader interface {
	GetActive(ctx context.Context, itemID id.ID) (*item.Item, error)
}

// WarehouseResolver validates ingredient warehouse overrides.
type WarehouseResolver interface {
	Resolve(ctx context.Context, warehouseID *id.ID) (*warehouse.Warehouse, error)
}

// IngredientInput is an ingredient as submitted by a client.
type IngredientInput struct {
	ItemID       id.ID
	Quantity     types.Quantity
	Unit         string
	WastePercent decimal.Decimal
	WarehouseID  *id.ID
}

// VersionPayload is the content of a new version.
type VersionPayload struct {
	Label       string
	Notes       string
	Ingredients []IngredientInput
	Portions    []Portion
}

// CreateCommand creates a recipe with its first version.
type CreateCommand struct {
	Code          string
	Name          string
	MenuItemID    *id.ID
	MenuItemName  string
	MenuItemPrice *types.Money
	Category      *string
	Description   *string
	Version       VersionPayload
}

// UpdateCommand changes header fields; nil fields are left untouched.
type UpdateCommand struct {
	Version       int
	Name          *string
	MenuItemID    *id.ID
	MenuItemName  *string
	MenuItemPrice *types.Money
	Category      *string
	Description   *string
}

// Service provides business logic for recipes.
type Service struct {
	repo       Repository
	txManager  tx.Manager
	items      ItemReader
	warehouses WarehouseResolver
	now        func() time.Time
}

// NewService creates a new Recipe service.
func NewService(repo Repository, txManager tx.Manager, items ItemReader, warehouses WarehouseResolver) *Service {
	return &Service{
		repo:       repo,
		txManager:  txManager,
		items:      items,
		warehouses: warehouses,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// PrepareVersion validates a payload and builds a version with a cost snapshot
// taken from the ingredients' current item costs.
func (s *Service) PrepareVersion(ctx context.Context, payload VersionPayload, userID string) (*Version, error) {
	if len(payload.Ingredients) == 0 {
		return nil, apperror.NewInvalidInput("ingredients", "at least one ingredient is required")
	}

	v := &Version{
		ID:                  id.New(),
		Label:               strings.TrimSpace(payload.Label),
		Notes:               strings.TrimSpace(payload.Notes),
		IngredientTotalCost: types.Zero(),
		CreatedBy:           userID,
		CreatedAt:           s.now(),
	}

	for i, in := range payload.Ingredients {
		field := fmt.Sprintf("ingredients[%d]", i)
		if !in.Quantity.IsPositive() {
			return nil, apperror.NewInvalidInput(field+".quantity", "quantity must be positive")
		}
		if in.WastePercent.IsNegative() || in.WastePercent.GreaterThan(hundred) {
			return nil, apperror.NewInvalidInput(field+".wastePercent", "waste percent must be between 0 and 100")
		}

		it, err := s.items.GetActive(ctx, in.ItemID)
		if err != nil {
			return nil, err
		}

		var warehouseID *id.ID
		if in.WarehouseID != nil && !id.IsNil(*in.WarehouseID) {
			wh, err := s.warehouses.Resolve(ctx, in.WarehouseID)
			if err != nil {
				return nil, err
			}
			warehouseID = &wh.ID
		}

		unit := strings.TrimSpace(in.Unit)
		if unit == "" {
			unit = it.Unit
		}

		ing := Ingredient{
			ItemID:       it.ID,
			ItemName:     it.Name,
			Quantity:     in.Quantity,
			Unit:         unit,
			WastePercent: in.WastePercent,
			WarehouseID:  warehouseID,
			UnitCost:     it.Cost,
		}
		v.Ingredients = append(v.Ingredients, ing)
		v.IngredientTotalCost = v.IngredientTotalCost.Add(ing.Cost(it.Cost))
	}

	portions, err := normalizePortions(payload.Portions)
	if err != nil {
		return nil, err
	}
	v.Portions = portions

	return v, nil
}

func normalizePortions(in []Portion) (Portions, error) {
	if len(in) == 0 {
		return DefaultPortions(), nil
	}
	out := make(Portions, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for i, p := range in {
		p.Key = strings.TrimSpace(p.Key)
		p.Label = strings.TrimSpace(p.Label)
		field := fmt.Sprintf("portions[%d]", i)
		if p.Key == "" {
			return nil, apperror.NewInvalidInput(field+".key", "portion key is required")
		}
		if _, dup := seen[p.Key]; dup {
			return nil, apperror.NewInvalidInput(field+".key", "duplicate portion key")
		}
		if !p.Multiplier.IsPositive() {
			return nil, apperror.NewInvalidInput(field+".multiplier", "multiplier must be positive")
		}
		if p.Label == "" {
			p.Label = p.Key
		}
		seen[p.Key] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// Create stores a recipe and its first version, which becomes the default.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Recipe, error) {
	r := NewRecipe(cmd.Code, cmd.Name)
	r.MenuItemID = cmd.MenuItemID
	r.MenuItemName = strings.TrimSpace(cmd.MenuItemName)
	r.MenuItemPrice = cmd.MenuItemPrice
	r.Category = trimmed(cmd.Category)
	r.Description = trimmed(cmd.Description)
	r.CreatedBy = appctx.ActorID(ctx)

	if err := r.Validate(); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.repo.ExistsByCode(ctx, r.Code)
		if err != nil {
			return err
		}
		if exists {
			return apperror.NewDuplicate("recipe", "code", r.Code)
		}
		if err := s.checkMenuItemFree(ctx, r.MenuItemID, r.ID); err != nil {
			return err
		}

		v, err := s.PrepareVersion(ctx, cmd.Version, r.CreatedBy)
		if err != nil {
			return err
		}
		v.VersionNumber = 1
		AttachVersion(r, v, true)

		if err := s.repo.Create(ctx, r); err != nil {
			return err
		}
		return s.repo.CreateVersion(ctx, v)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "recipe created", "recipe_id", r.ID, "code", r.Code)
	return r, nil
}

// checkMenuItemFree enforces one active recipe per menu item.
func (s *Service) checkMenuItemFree(ctx context.Context, menuItemID *id.ID, self id.ID) error {
	if menuItemID == nil || id.IsNil(*menuItemID) {
		return nil
	}
	linked, err := s.repo.FindActiveByMenuItems(ctx, []id.ID{*menuItemID})
	if err != nil {
		return err
	}
	for _, other := range linked {
		if other.ID != self {
			return apperror.NewConflict("menu item already has an active recipe").
				WithDetail("menuItemId", menuItemID.String()).
				WithDetail("recipeId", other.ID.String())
		}
	}
	return nil
}

// Get returns a recipe with all versions.
func (s *Service) Get(ctx context.Context, recipeID id.ID) (*Recipe, error) {
	r, err := s.repo.GetByID(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	if err := s.loadVersions(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// GetByMenuItem returns the active recipe of a menu item.
func (s *Service) GetByMenuItem(ctx context.Context, menuItemID id.ID) (*Recipe, error) {
	found, err := s.ActiveForMenuItems(ctx, []id.ID{menuItemID})
	if err != nil {
		return nil, err
	}
	r, ok := found[menuItemID]
	if !ok {
		return nil, apperror.NewNotFound("recipe", menuItemID.String()).WithDetail("menuItemId", menuItemID.String())
	}
	return r, nil
}

// ActiveForMenuItems returns active recipes, with versions, keyed by menu item id.
func (s *Service) ActiveForMenuItems(ctx context.Context, menuItemIDs []id.ID) (map[id.ID]*Recipe, error) {
	out := make(map[id.ID]*Recipe, len(menuItemIDs))
	if len(menuItemIDs) == 0 {
		return out, nil
	}

	recipes, err := s.repo.FindActiveByMenuItems(ctx, menuItemIDs)
	if err != nil {
		return nil, err
	}
	if len(recipes) == 0 {
		return out, nil
	}

	byID := make(map[id.ID]*Recipe, len(recipes))
	ids := make([]id.ID, 0, len(recipes))
	for _, r := range recipes {
		r.Versions = make(map[id.ID]*Version)
		byID[r.ID] = r
		ids = append(ids, r.ID)
		if r.MenuItemID != nil {
			if _, taken := out[*r.MenuItemID]; !taken {
				out[*r.MenuItemID] = r
			}
		}
	}

	versions, err := s.repo.ListVersions(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for _, v := range versions {
		if r, ok := byID[v.RecipeID]; ok {
			r.Versions[v.ID] = v
		}
	}
	return out, nil
}

func (s *Service) List(ctx context.Context, filter Filter) (domain.ListResult[*Recipe], error) {
	filter.ListFilter = filter.ListFilter.Normalize()
	return s.repo.List(ctx, filter)
}

// Update changes header fields.
func (s *Service) Update(ctx context.Context, recipeID id.ID, cmd UpdateCommand) (*Recipe, error) {
	var result *Recipe

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetForUpdate(ctx, recipeID)
		if err != nil {
			return err
		}
		if cmd.Version > 0 && cmd.Version != r.Version {
			return apperror.NewConcurrentModification("recipe", recipeID.String())
		}

		if cmd.Name != nil {
			r.Name = strings.TrimSpace(*cmd.Name)
		}
		if cmd.MenuItemID != nil {
			if id.IsNil(*cmd.MenuItemID) {
				r.MenuItemID = nil
			} else {
				if err := s.checkMenuItemFree(ctx, cmd.MenuItemID, r.ID); err != nil {
					return err
				}
				r.MenuItemID = cmd.MenuItemID
			}
		}
		if cmd.MenuItemName != nil {
			r.MenuItemName = strings.TrimSpace(*cmd.MenuItemName)
		}
		if cmd.MenuItemPrice != nil {
			r.MenuItemPrice = cmd.MenuItemPrice
		}
		if cmd.Category != nil {
			r.Category = trimmed(cmd.Category)
		}
		if cmd.Description != nil {
			r.Description = trimmed(cmd.Description)
		}
		if err := r.Validate(); err != nil {
			return err
		}

		r.Touch()
		if err := s.repo.Update(ctx, r); err != nil {
			return err
		}
		if err := s.loadVersions(ctx, r); err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AddVersion appends a version; makeDefault switches the default to it.
func (s *Service) AddVersion(ctx context.Context, recipeID id.ID, payload VersionPayload, makeDefault bool) (*Recipe, *Version, error) {
	var (
		result  *Recipe
		version *Version
	)

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetForUpdate(ctx, recipeID)
		if err != nil {
			return err
		}
		if err := s.loadVersions(ctx, r); err != nil {
			return err
		}

		v, err := s.PrepareVersion(ctx, payload, appctx.ActorID(ctx))
		if err != nil {
			return err
		}
		v.VersionNumber, err = s.repo.NextVersionNumber(ctx, r.ID)
		if err != nil {
			return err
		}
		if v.Label == "" {
			v.Label = fmt.Sprintf("v%d", v.VersionNumber)
		}

		AttachVersion(r, v, makeDefault)
		if err := s.repo.CreateVersion(ctx, v); err != nil {
			return err
		}

		r.Touch()
		if err := s.repo.Update(ctx, r); err != nil {
			return err
		}
		result, version = r, v
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	logger.Info(ctx, "recipe version added",
		"recipe_id", recipeID,
		"version", version.VersionNumber,
		"default", version.IsDefault(result),
	)
	return result, version, nil
}

// SetDefaultVersion switches the default version and refreshes the estimated cost.
func (s *Service) SetDefaultVersion(ctx context.Context, recipeID, versionID id.ID) (*Recipe, error) {
	var result *Recipe

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetForUpdate(ctx, recipeID)
		if err != nil {
			return err
		}
		if err := s.loadVersions(ctx, r); err != nil {
			return err
		}
		if err := r.SetDefault(versionID); err != nil {
			return err
		}

		r.Touch()
		if err := s.repo.Update(ctx, r); err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Archive deactivates a recipe; orders for its menu item stop consuming stock.
func (s *Service) Archive(ctx context.Context, recipeID id.ID) (*Recipe, error) {
	var result *Recipe

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetForUpdate(ctx, recipeID)
		if err != nil {
			return err
		}
		if r.IsActive {
			r.Archive()
			if err := s.repo.Update(ctx, r); err != nil {
				return err
			}
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TouchLastUsed stamps lastUsedAt on recipes that consumed stock.
func (s *Service) TouchLastUsed(ctx context.Context, recipeIDs []id.ID) error {
	if len(recipeIDs) == 0 {
		return nil
	}
	return s.repo.TouchLastUsed(ctx, recipeIDs, s.now())
}

func (s *Service) loadVersions(ctx context.Context, r *Recipe) error {
	versions, err := s.repo.ListVersions(ctx, r.ID)
	if err != nil {
		return err
	}
	r.Versions = make(map[id.ID]*Version, len(versions))
	for _, v := range versions {
		r.Versions[v.ID] = v
	}
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
