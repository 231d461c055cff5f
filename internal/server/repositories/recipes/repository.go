// Package recipes stores user-owned recipes together with their tag and
// ingredient links.
package recipes

import (
	"context"

	"github.com/dmitrijs2005/recipekeeper/internal/server/models"
)

// Filter narrows List. Ids within one kind are OR-ed, kinds are AND-ed.
type Filter struct {
	TagIDs        []int64
	IngredientIDs []int64
}

type Repository interface {
	// List returns the recipes of userID ordered by id descending, with
	// tags and ingredients loaded.
	List(ctx context.Context, userID string, filter Filter) ([]*models.Recipe, error)
	// Get returns common.ErrorNotFound for unknown ids and for recipes
	// owned by someone else.
	Get(ctx context.Context, userID string, id int64) (*models.Recipe, error)
	Create(ctx context.Context, recipe *models.Recipe) (*models.Recipe, error)
	Update(ctx context.Context, recipe *models.Recipe) error
	Delete(ctx context.Context, userID string, id int64) error
	SetTags(ctx context.Context, recipeID int64, tagIDs []int64) error
	SetIngredients(ctx context.Context, recipeID int64, ingredientIDs []int64) error
}
