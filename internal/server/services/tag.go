package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/recipekeeper/internal/common"
	"github.com/dmitrijs2005/recipekeeper/internal/server/models"
	"github.com/dmitrijs2005/recipekeeper/internal/server/repositories/repomanager"
	"github.com/jmoiron/sqlx"
)

// TagService manages the tags of a single user at a time.
type TagService struct {
	db          *sqlx.DB
	repomanager repomanager.RepositoryManager
}

func NewTagService(db *sqlx.DB, m repomanager.RepositoryManager) *TagService {
	return &TagService{db: db, repomanager: m}
}

// List returns the user's tags ordered by name, descending.
func (s *TagService) List(ctx context.Context, userID string, assignedOnly bool) ([]*models.Tag, error) {
	tags, err := s.repomanager.Tags(s.db).List(ctx, userID, assignedOnly)
	if err != nil {
		return nil, fmt.Errorf("error listing tags: %w", err)
	}
	return tags, nil
}

func (s *TagService) Create(ctx context.Context, userID, name string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: tag name is required", common.ErrInvalidArgument)
	}

	tag, err := s.repomanager.Tags(s.db).Create(ctx, &models.Tag{UserID: userID, Name: name})
	if err != nil {
		return nil, fmt.Errorf("error creating tag: %w", err)
	}
	return tag, nil
}

// IngredientService manages the ingredients of a single user at a time.
type IngredientService struct {
	db          *sqlx.DB
	repomanager repomanager.RepositoryManager
}

func NewIngredientService(db *sqlx.DB, m repomanager.RepositoryManager) *IngredientService {
	return &IngredientService{db: db, repomanager: m}
}

func (s *IngredientService) List(ctx context.Context, userID string, assignedOnly bool) ([]*models.Ingredient, error) {
	ingredients, err := s.repomanager.Ingredients(s.db).List(ctx, userID, assignedOnly)
	if err != nil {
		return nil, fmt.Errorf("error listing ingredients: %w", err)
	}
	return ingredients, nil
}

func (s *IngredientService) Create(ctx context.Context, userID, name string) (*models.Ingredient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: ingredient name is required", common.ErrInvalidArgument)
	}

	ingredient, err := s.repomanager.Ingredients(s.db).Create(ctx, &models.Ingredient{UserID: userID, Name: name})
	if err != nil {
		return nil, fmt.Errorf("error creating ingredient: %w", err)
	}
	return ingredient, nil
}
