// Package users declares the repository contract for account records.
package users

import (
	"context"

	"github.com/dmitrijs2005/recipekeeper/internal/server/models"
)

// Repository stores users keyed by id with a unique index on email.
// Implementations return common.ErrUniqueViolation when the email is taken
// and common.ErrorNotFound when a lookup matches nothing.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	SetPassword(ctx context.Context, id string, password string) error
}
