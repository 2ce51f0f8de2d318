package recipe

import (
	"context"
	"time"

	"restopos/internal/core/id"
	"restopos/internal/domain"
)

// Filter narrows recipe lists.
type Filter struct {
	domain.ListFilter

	Category   string
	MenuItemID *id.ID
}

// Repository defines the interface for recipe persistence. Recipes are returned
// without versions; versions are loaded separately.
type Repository interface {
	Create(ctx context.Context, r *Recipe) error

	// Update writes header fields, the default pointer and the estimated cost
	// with optimistic locking.
	Update(ctx context.Context, r *Recipe) error

	GetByID(ctx context.Context, recipeID id.ID) (*Recipe, error)
	GetForUpdate(ctx context.Context, recipeID id.ID) (*Recipe, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	List(ctx context.Context, filter Filter) (domain.ListResult[*Recipe], error)

	// FindActiveByMenuItems returns active recipes linked to any of the menu items.
	FindActiveByMenuItems(ctx context.Context, menuItemIDs []id.ID) ([]*Recipe, error)

	CreateVersion(ctx context.Context, v *Version) error

	// ListVersions returns the versions of the given recipes ordered by number.
	ListVersions(ctx context.Context, recipeIDs ...id.ID) ([]*Version, error)

	NextVersionNumber(ctx context.Context, recipeID id.ID) (int, error)

	TouchLastUsed(ctx context.Context, recipeIDs []id.ID, at time.Time) error
}
