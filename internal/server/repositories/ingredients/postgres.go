package ingredients

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/dmitrijs2005/recipekeeper/internal/dbx"
	"github.com/dmitrijs2005/recipekeeper/internal/server/models"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) List(ctx context.Context, userID string, assignedOnly bool) ([]*models.Ingredient, error) {
	q := psql.Select("i.id", "i.user_id", "i.name").
		From("ingredients i").
		Where(squirrel.Eq{"i.user_id": userID}).
		OrderBy("i.name DESC")

	if assignedOnly {
		q = q.Where("EXISTS (SELECT 1 FROM recipe_ingredients ri WHERE ri.ingredient_id = i.id)")
	}

	return r.selectIngredients(ctx, q)
}

func (r *PostgresRepository) Create(ctx context.Context, ingredient *models.Ingredient) (*models.Ingredient, error) {
	query, args, err := psql.Insert("ingredients").
		Columns("user_id", "name").
		Values(ingredient.UserID, ingredient.Name).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&ingredient.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ingredient, nil
}

func (r *PostgresRepository) GetByIDs(ctx context.Context, userID string, ids []int64) ([]*models.Ingredient, error) {
	if len(ids) == 0 {
		return []*models.Ingredient{}, nil
	}

	q := psql.Select("i.id", "i.user_id", "i.name").
		From("ingredients i").
		Where(squirrel.Eq{"i.user_id": userID, "i.id": ids}).
		OrderBy("i.id")

	return r.selectIngredients(ctx, q)
}

func (r *PostgresRepository) selectIngredients(ctx context.Context, q squirrel.SelectBuilder) ([]*models.Ingredient, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	out := []*models.Ingredient{}
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
