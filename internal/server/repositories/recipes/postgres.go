package recipes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/dmitrijs2005/recipekeeper/internal/common"
	"github.com/dmitrijs2005/recipekeeper/internal/dbx"
	"github.com/dmitrijs2005/recipekeeper/internal/server/models"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var recipeColumns = []string{"r.id", "r.user_id", "r.title", "r.time_minutes", "r.price", "r.link", "r.image"}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context, userID string, filter Filter) ([]*models.Recipe, error) {
	q := psql.Select(recipeColumns...).
		From("recipes r").
		Where(squirrel.Eq{"r.user_id": userID}).
		OrderBy("r.id DESC")

	if len(filter.TagIDs) > 0 {
		q = q.Where("r.id IN (SELECT recipe_id FROM recipe_tags WHERE tag_id IN ("+
			squirrel.Placeholders(len(filter.TagIDs))+"))", int64Args(filter.TagIDs)...)
	}
	if len(filter.IngredientIDs) > 0 {
		q = q.Where("r.id IN (SELECT recipe_id FROM recipe_ingredients WHERE ingredient_id IN ("+
			squirrel.Placeholders(len(filter.IngredientIDs))+"))", int64Args(filter.IngredientIDs)...)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	out := []*models.Recipe{}
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := r.loadRelations(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID string, id int64) (*models.Recipe, error) {
	query, args, err := psql.Select(recipeColumns...).
		From("recipes r").
		Where(squirrel.Eq{"r.id": id, "r.user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	recipe := &models.Recipe{}
	if err := r.db.GetContext(ctx, recipe, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := r.loadRelations(ctx, []*models.Recipe{recipe}); err != nil {
		return nil, err
	}
	return recipe, nil
}

func (r *PostgresRepository) Create(ctx context.Context, recipe *models.Recipe) (*models.Recipe, error) {
	query, args, err := psql.Insert("recipes").
		Columns("user_id", "title", "time_minutes", "price", "link", "image").
		Values(recipe.UserID, recipe.Title, recipe.TimeMinutes, recipe.Price, recipe.Link, recipe.Image).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&recipe.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return recipe, nil
}

func (r *PostgresRepository) Update(ctx context.Context, recipe *models.Recipe) error {
	query, args, err := psql.Update("recipes").
		Set("title", recipe.Title).
		Set("time_minutes", recipe.TimeMinutes).
		Set("price", recipe.Price).
		Set("link", recipe.Link).
		Set("image", recipe.Image).
		Where(squirrel.Eq{"id": recipe.ID, "user_id": recipe.UserID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, userID string, id int64) error {
	query, args, err := psql.Delete("recipes").
		Where(squirrel.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) SetTags(ctx context.Context, recipeID int64, tagIDs []int64) error {
	return r.replaceLinks(ctx, "recipe_tags", "tag_id", recipeID, tagIDs)
}

func (r *PostgresRepository) SetIngredients(ctx context.Context, recipeID int64, ingredientIDs []int64) error {
	return r.replaceLinks(ctx, "recipe_ingredients", "ingredient_id", recipeID, ingredientIDs)
}

// replaceLinks swaps the link rows of recipeID in table for ids. Callers run
// it inside a transaction.
func (r *PostgresRepository) replaceLinks(ctx context.Context, table, column string, recipeID int64, ids []int64) error {
	query, args, err := psql.Delete(table).Where(squirrel.Eq{"recipe_id": recipeID}).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if len(ids) == 0 {
		return nil
	}

	ins := psql.Insert(table).Columns("recipe_id", column)
	for _, id := range ids {
		ins = ins.Values(recipeID, id)
	}
	ins = ins.Suffix("ON CONFLICT DO NOTHING")

	query, args, err = ins.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

type tagLink struct {
	RecipeID int64 `db:"recipe_id"`
	models.Tag
}

type ingredientLink struct {
	RecipeID int64 `db:"recipe_id"`
	models.Ingredient
}

// loadRelations fills Tags and Ingredients of recipes with two queries.
func (r *PostgresRepository) loadRelations(ctx context.Context, recipes []*models.Recipe) error {
	if len(recipes) == 0 {
		return nil
	}

	byID := make(map[int64]*models.Recipe, len(recipes))
	ids := make([]int64, 0, len(recipes))
	for _, rc := range recipes {
		rc.Tags = []*models.Tag{}
		rc.Ingredients = []*models.Ingredient{}
		byID[rc.ID] = rc
		ids = append(ids, rc.ID)
	}

	query, args, err := psql.Select("rt.recipe_id", "t.id", "t.user_id", "t.name").
		From("recipe_tags rt").
		Join("tags t ON t.id = rt.tag_id").
		Where(squirrel.Eq{"rt.recipe_id": ids}).
		OrderBy("t.id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	var tags []tagLink
	if err := r.db.SelectContext(ctx, &tags, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	for i := range tags {
		if rc, ok := byID[tags[i].RecipeID]; ok {
			tag := tags[i].Tag
			rc.Tags = append(rc.Tags, &tag)
		}
	}

	query, args, err = psql.Select("ri.recipe_id", "i.id", "i.user_id", "i.name").
		From("recipe_ingredients ri").
		Join("ingredients i ON i.id = ri.ingredient_id").
		Where(squirrel.Eq{"ri.recipe_id": ids}).
		OrderBy("i.id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	var ingredients []ingredientLink
	if err := r.db.SelectContext(ctx, &ingredients, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	for i := range ingredients {
		if rc, ok := byID[ingredients[i].RecipeID]; ok {
			ing := ingredients[i].Ingredient
			rc.Ingredients = append(rc.Ingredients, &ing)
		}
	}

	return nil
}

func int64Args(ids []int64) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
