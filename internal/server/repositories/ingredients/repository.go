// Package ingredients stores user-owned recipe ingredients.
package ingredients

import (
	"context"

	"github.com/dmitrijs2005/recipekeeper/internal/server/models"
)

type Repository interface {
	// List returns the ingredients of userID ordered by name descending. With
	// assignedOnly only ingredients attached to at least one recipe are returned.
	List(ctx context.Context, userID string, assignedOnly bool) ([]*models.Ingredient, error)
	Create(ctx context.Context, ingredient *models.Ingredient) (*models.Ingredient, error)
	// GetByIDs returns the ingredients of userID among ids. Foreign or unknown ids
	// are silently skipped.
	GetByIDs(ctx context.Context, userID string, ids []int64) ([]*models.Ingredient, error)
}
