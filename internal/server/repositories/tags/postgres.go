package tags

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

func (r *PostgresRepository) List(ctx context.Context, userID string, assignedOnly bool) ([]*models.Tag, error) {
	q := psql.Select("t.id", "t.user_id", "t.name").
		From("tags t").
		Where(squirrel.Eq{"t.user_id": userID}).
		OrderBy("t.name DESC")

	if assignedOnly {
		q = q.Where("EXISTS (SELECT 1 FROM recipe_tags rt WHERE rt.tag_id = t.id)")
	}

	return r.selectTags(ctx, q)
}

func (r *PostgresRepository) Create(ctx context.Context, tag *models.Tag) (*models.Tag, error) {
	query, args, err := psql.Insert("tags").
		Columns("user_id", "name").
		Values(tag.UserID, tag.Name).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&tag.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return tag, nil
}

func (r *PostgresRepository) GetByIDs(ctx context.Context, userID string, ids []int64) ([]*models.Tag, error) {
	if len(ids) == 0 {
		return []*models.Tag{}, nil
	}

	q := psql.Select("t.id", "t.user_id", "t.name").
		From("tags t").
		Where(squirrel.Eq{"t.user_id": userID, "t.id": ids}).
		OrderBy("t.id")

	return r.selectTags(ctx, q)
}

func (r *PostgresRepository) selectTags(ctx context.Context, q squirrel.SelectBuilder) ([]*models.Tag, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	out := []*models.Tag{}
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
