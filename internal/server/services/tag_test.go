package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/recipekeeper/internal/common"
	"github.com/dmitrijs2005/recipekeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagService(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := newFakeRepoManager()
	s := NewTagService(db, rm)
	ctx := context.Background()

	_, err := s.Create(ctx, "u-1", "Dessert")
	require.NoError(t, err)
	_, err = s.Create(ctx, "u-1", "  Vegan ")
	require.NoError(t, err)
	_, err = s.Create(ctx, "u-2", "Fruity")
	require.NoError(t, err)

	got, err := s.List(ctx, "u-1", false)
	require.NoError(t, err)
	require.Len(t, got, 2, "only the user's own tags")
	assert.Equal(t, "Vegan", got[0].Name)
	assert.Equal(t, "Dessert", got[1].Name)

	_, err = s.Create(ctx, "u-1", " ")
	require.ErrorIs(t, err, common.ErrInvalidArgument)

	rm.tags.err = errBoom{}
	_, err = s.List(ctx, "u-1", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error listing tags: boom")
}

func TestIngredientService(t *testing.T) {
	db, _ := newSQLMockDB(t)
	rm := newFakeRepoManager()
	s := NewIngredientService(db, rm)
	ctx := context.Background()

	rm.ingredients.items = []*models.Ingredient{
		{ID: 1, UserID: "u-2", Name: "Vinegar"},
	}

	created, err := s.Create(ctx, "u-1", "Kale")
	require.NoError(t, err)
	assert.Equal(t, "u-1", created.UserID)
	_, err = s.Create(ctx, "u-1", "Salt")
	require.NoError(t, err)

	got, err := s.List(ctx, "u-1", false)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"Salt", "Kale"}, []string{got[0].Name, got[1].Name})

	_, err = s.Create(ctx, "u-1", "")
	require.ErrorIs(t, err, common.ErrInvalidArgument)

	rm.ingredients.err = errBoom{}
	_, err = s.Create(ctx, "u-1", "Pepper")
	require.Error(t, err)
}
