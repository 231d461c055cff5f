// Package tags stores user-owned recipe tags.
package tags

import (
	"context"

	"github.com/dmitrijs2005/recipekeeper/internal/server/models"
)

type Repository interface {
	// List returns the tags of userID ordered by name descending. With
	// assignedOnly only tags attached to at least one recipe are returned.
	List(ctx context.Context, userID string, assignedOnly bool) ([]*models.Tag, error)
	Create(ctx context.Context, tag *models.Tag) (*models.Tag, error)
	// GetByIDs returns the tags of userID among ids. Foreign or unknown ids
	// are silently skipped.
	GetByIDs(ctx context.Context, userID string, ids []int64) ([]*models.Tag, error)
}
