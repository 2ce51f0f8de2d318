package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"restopos/internal/core/apperror"
	"restopos/internal/core/id"
	"restopos/internal/domain"
	"restopos/internal/domain/catalogs/recipe"
	"restopos/internal/infrastructure/storage/postgres"
)

const (
	recipeTable        = "recipes"
	recipeVersionTable = "recipe_versions"
)

var _ recipe.Repository = (*RecipeRepo)(nil)

// RecipeRepo implements recipe.Repository. Versions live in their own table and
// are append-only.
type RecipeRepo struct {
	*BaseCatalogRepo[*recipe.Recipe]
	versionCols []string
}

// NewRecipeRepo creates a new recipe repository.
func NewRecipeRepo(txManager *postgres.TxManager) *RecipeRepo {
	return &RecipeRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txManager,
			recipeTable,
			"recipe",
			postgres.ExtractDBColumns[recipe.Recipe](),
			func() *recipe.Recipe { return &recipe.Recipe{} },
		),
		versionCols: postgres.ExtractDBColumns[recipe.Version](),
	}
}

// Create maps the active-recipe-per-menu-item index to a conflict.
func (r *RecipeRepo) Create(ctx context.Context, rec *recipe.Recipe) error {
	return menuItemTaken(r.BaseCatalogRepo.Create(ctx, rec), rec)
}

// Update leaves last_used_at to TouchLastUsed.
func (r *RecipeRepo) Update(ctx context.Context, rec *recipe.Recipe) error {
	return menuItemTaken(r.BaseCatalogRepo.Update(ctx, rec, "last_used_at"), rec)
}

const activeMenuItemIndex = "recipes_active_menu_item_key"

// menuItemTaken reports a concurrent link of the same menu item as a conflict.
func menuItemTaken(err error, rec *recipe.Recipe) error {
	if err == nil || postgres.ConstraintName(err) != activeMenuItemIndex || rec.MenuItemID == nil {
		return err
	}
	return apperror.NewConflict("menu item already has an active recipe").
		WithDetail("menuItemId", rec.MenuItemID.String()).
		WithCause(err)
}

func (r *RecipeRepo) List(ctx context.Context, filter recipe.Filter) (domain.ListResult[*recipe.Recipe], error) {
	return r.BaseCatalogRepo.List(ctx, r.listQuery(filter), filter.ListFilter)
}

func (r *RecipeRepo) listQuery(filter recipe.Filter) squirrel.SelectBuilder {
	q := r.ListQuery(filter.ListFilter)
	if filter.Category != "" {
		q = q.Where(squirrel.Eq{"category": filter.Category})
	}
	if filter.MenuItemID != nil {
		q = q.Where(squirrel.Eq{"menu_item_id": *filter.MenuItemID})
	}
	return q
}

func (r *RecipeRepo) FindActiveByMenuItems(ctx context.Context, menuItemIDs []id.ID) ([]*recipe.Recipe, error) {
	if len(menuItemIDs) == 0 {
		return nil, nil
	}
	return r.FindMany(ctx, r.baseSelect().
		Where(squirrel.Eq{"is_active": true, "menu_item_id": menuItemIDs}).
		OrderBy("created_at ASC"))
}

func (r *RecipeRepo) CreateVersion(ctx context.Context, v *recipe.Version) error {
	data := postgres.PickColumns(postgres.StructToMap(v), r.versionCols)

	sql, args, err := r.Builder().Insert(recipeVersionTable).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert version: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.DuplicateOr(fmt.Errorf("insert recipe version: %w", err),
			"recipe version", "versionNumber", fmt.Sprint(v.VersionNumber))
	}
	return nil
}

func (r *RecipeRepo) ListVersions(ctx context.Context, recipeIDs ...id.ID) ([]*recipe.Version, error) {
	if len(recipeIDs) == 0 {
		return nil, nil
	}

	sql, args, err := r.Builder().
		Select(r.versionCols...).
		From(recipeVersionTable).
		Where(squirrel.Eq{"recipe_id": recipeIDs}).
		OrderBy("recipe_id", "version_number").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var versions []*recipe.Version
	if err := pgxscan.Select(ctx, r.querier(ctx), &versions, sql, args...); err != nil {
		return nil, fmt.Errorf("list recipe versions: %w", err)
	}
	return versions, nil
}

func (r *RecipeRepo) NextVersionNumber(ctx context.Context, recipeID id.ID) (int, error) {
	var next int
	err := r.querier(ctx).QueryRow(ctx,
		`SELECT COALESCE(MAX(version_number), 0) + 1 FROM `+recipeVersionTable+` WHERE recipe_id = $1`,
		recipeID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next version number: %w", err)
	}
	return next, nil
}

// TouchLastUsed does not bump the optimistic version; it is bookkeeping, not an edit.
func (r *RecipeRepo) TouchLastUsed(ctx context.Context, recipeIDs []id.ID, at time.Time) error {
	if len(recipeIDs) == 0 {
		return nil
	}
	sql, args, err := r.Builder().
		Update(recipeTable).
		Set("last_used_at", at).
		Where(squirrel.Eq{"id": recipeIDs}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch: %w", err)
	}
	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("touch recipes: %w", err)
	}
	return nil
}
