package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"slices"
	"strings"

	"github.com/dmitrijs2005/recipekeeper/internal/common"
	"github.com/dmitrijs2005/recipekeeper/internal/dbx"
	"github.com/dmitrijs2005/recipekeeper/internal/server/models"
	"github.com/dmitrijs2005/recipekeeper/internal/server/repositories/recipes"
	"github.com/dmitrijs2005/recipekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/recipekeeper/internal/server/storage"
	"github.com/dmitrijs2005/recipekeeper/internal/server/uploads"
	"github.com/jmoiron/sqlx"
)

// sniffLen is how many leading bytes http.DetectContentType looks at.
const sniffLen = 512

// price fits numeric(5,2).
var priceRe = regexp.MustCompile(`^\d{1,3}(\.\d{1,2})?$`)

// recipeImagePath is a seam for tests.
var recipeImagePath = uploads.RecipeImagePath

// RecipeFilter selects recipes by attached tags and ingredients.
type RecipeFilter = recipes.Filter

// RecipeInput is the full set of writable recipe fields.
type RecipeInput struct {
	Title         string
	TimeMinutes   int
	Price         string
	Link          string
	TagIDs        []int64
	IngredientIDs []int64
}

// RecipePatch is a partial update; nil fields are left as they are.
type RecipePatch struct {
	Title         *string
	TimeMinutes   *int
	Price         *string
	Link          *string
	TagIDs        *[]int64
	IngredientIDs *[]int64
}

type RecipeService struct {
	db          *sqlx.DB
	repomanager repomanager.RepositoryManager
	storage     storage.Storage
}

func NewRecipeService(db *sqlx.DB, m repomanager.RepositoryManager, st storage.Storage) *RecipeService {
	return &RecipeService{db: db, repomanager: m, storage: st}
}

func (s *RecipeService) List(ctx context.Context, userID string, filter RecipeFilter) ([]*models.Recipe, error) {
	out, err := s.repomanager.Recipes(s.db).List(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing recipes: %w", err)
	}
	return out, nil
}

// Get returns common.ErrorNotFound for recipes of other users.
func (s *RecipeService) Get(ctx context.Context, userID string, id int64) (*models.Recipe, error) {
	rc, err := s.repomanager.Recipes(s.db).Get(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("error loading recipe: %w", err)
	}
	return rc, nil
}

func (s *RecipeService) Create(ctx context.Context, userID string, in RecipeInput) (*models.Recipe, error) {
	if err := validateRecipe(in.Title, in.TimeMinutes, in.Price); err != nil {
		return nil, err
	}

	var out *models.Recipe
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		tagIDs, ingredientIDs, err := s.ownedRelations(ctx, tx, userID, in.TagIDs, in.IngredientIDs)
		if err != nil {
			return err
		}

		repo := s.repomanager.Recipes(tx)
		rc, err := repo.Create(ctx, &models.Recipe{
			UserID:      userID,
			Title:       in.Title,
			TimeMinutes: in.TimeMinutes,
			Price:       in.Price,
			Link:        in.Link,
		})
		if err != nil {
			return err
		}
		if err := repo.SetTags(ctx, rc.ID, tagIDs); err != nil {
			return err
		}
		if err := repo.SetIngredients(ctx, rc.ID, ingredientIDs); err != nil {
			return err
		}

		out, err = repo.Get(ctx, userID, rc.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error creating recipe: %w", err)
	}
	return out, nil
}

// Update replaces every writable field of the recipe.
func (s *RecipeService) Update(ctx context.Context, userID string, id int64, in RecipeInput) (*models.Recipe, error) {
	tags, ingredients := in.TagIDs, in.IngredientIDs
	if tags == nil {
		tags = []int64{}
	}
	if ingredients == nil {
		ingredients = []int64{}
	}
	return s.Patch(ctx, userID, id, RecipePatch{
		Title:         &in.Title,
		TimeMinutes:   &in.TimeMinutes,
		Price:         &in.Price,
		Link:          &in.Link,
		TagIDs:        &tags,
		IngredientIDs: &ingredients,
	})
}

func (s *RecipeService) Patch(ctx context.Context, userID string, id int64, p RecipePatch) (*models.Recipe, error) {
	var out *models.Recipe
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Recipes(tx)

		rc, err := repo.Get(ctx, userID, id)
		if err != nil {
			return err
		}
		if p.Title != nil {
			rc.Title = *p.Title
		}
		if p.TimeMinutes != nil {
			rc.TimeMinutes = *p.TimeMinutes
		}
		if p.Price != nil {
			rc.Price = *p.Price
		}
		if p.Link != nil {
			rc.Link = *p.Link
		}
		if err := validateRecipe(rc.Title, rc.TimeMinutes, rc.Price); err != nil {
			return err
		}

		var tagIDs, ingredientIDs []int64
		if p.TagIDs != nil {
			tagIDs = *p.TagIDs
		}
		if p.IngredientIDs != nil {
			ingredientIDs = *p.IngredientIDs
		}
		tagIDs, ingredientIDs, err = s.ownedRelations(ctx, tx, userID, tagIDs, ingredientIDs)
		if err != nil {
			return err
		}

		if err := repo.Update(ctx, rc); err != nil {
			return err
		}
		if p.TagIDs != nil {
			if err := repo.SetTags(ctx, rc.ID, tagIDs); err != nil {
				return err
			}
		}
		if p.IngredientIDs != nil {
			if err := repo.SetIngredients(ctx, rc.ID, ingredientIDs); err != nil {
				return err
			}
		}

		out, err = repo.Get(ctx, userID, rc.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("error updating recipe: %w", err)
	}
	return out, nil
}

// Delete removes the recipe and, best effort, its stored image.
func (s *RecipeService) Delete(ctx context.Context, userID string, id int64) error {
	repo := s.repomanager.Recipes(s.db)

	rc, err := repo.Get(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("error deleting recipe: %w", err)
	}
	if err := repo.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("error deleting recipe: %w", err)
	}
	if rc.Image != "" {
		_ = s.storage.Delete(ctx, rc.Image)
	}
	return nil
}

// UploadImage stores body as the recipe's image under a freshly generated
// key and records the key on the recipe. Only image content is accepted.
// A previously stored image is removed once the new one is recorded.
func (s *RecipeService) UploadImage(ctx context.Context, userID string, id int64, filename string, body io.Reader) (*models.Recipe, error) {
	repo := s.repomanager.Recipes(s.db)

	rc, err := repo.Get(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("error loading recipe: %w", err)
	}

	if !uploads.ValidExtension(filename) {
		return nil, fmt.Errorf("%w: unsupported file extension", common.ErrInvalidArgument)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("error reading upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, fmt.Errorf("%w: empty upload", common.ErrInvalidArgument)
	}

	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: %s is not an image", common.ErrInvalidArgument, contentType)
	}

	key := recipeImagePath(rc, filename)
	if err := s.storage.Save(ctx, key, io.MultiReader(bytes.NewReader(head), body), contentType); err != nil {
		return nil, fmt.Errorf("error storing image: %w", err)
	}

	previous := rc.Image
	rc.Image = key
	if err := repo.Update(ctx, rc); err != nil {
		_ = s.storage.Delete(ctx, key)
		return nil, fmt.Errorf("error saving recipe: %w", err)
	}
	if previous != "" && previous != key {
		_ = s.storage.Delete(ctx, previous)
	}
	return rc, nil
}

// ImageURL resolves where clients fetch the recipe image from. It returns
// an empty string when the recipe has no image.
func (s *RecipeService) ImageURL(ctx context.Context, rc *models.Recipe) (string, error) {
	if rc.Image == "" {
		return "", nil
	}
	return s.storage.URL(ctx, rc.Image)
}

// ownedRelations dedupes the ids and checks that all of them belong to
// userID.
func (s *RecipeService) ownedRelations(ctx context.Context, db dbx.DBTX, userID string, tagIDs, ingredientIDs []int64) ([]int64, []int64, error) {
	tagIDs = uniqueIDs(tagIDs)
	ingredientIDs = uniqueIDs(ingredientIDs)

	if len(tagIDs) > 0 {
		tags, err := s.repomanager.Tags(db).GetByIDs(ctx, userID, tagIDs)
		if err != nil {
			return nil, nil, err
		}
		if len(tags) != len(tagIDs) {
			return nil, nil, fmt.Errorf("%w: unknown tag", common.ErrInvalidArgument)
		}
	}
	if len(ingredientIDs) > 0 {
		ingredients, err := s.repomanager.Ingredients(db).GetByIDs(ctx, userID, ingredientIDs)
		if err != nil {
			return nil, nil, err
		}
		if len(ingredients) != len(ingredientIDs) {
			return nil, nil, fmt.Errorf("%w: unknown ingredient", common.ErrInvalidArgument)
		}
	}
	return tagIDs, ingredientIDs, nil
}

func validateRecipe(title string, minutes int, price string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", common.ErrInvalidArgument)
	}
	if minutes < 0 {
		return fmt.Errorf("%w: time_minutes must not be negative", common.ErrInvalidArgument)
	}
	if !priceRe.MatchString(price) {
		return fmt.Errorf("%w: price must be a decimal with at most 3 digits and 2 places", common.ErrInvalidArgument)
	}
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
