package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/recipekeeper/internal/common"
	"github.com/dmitrijs2005/recipekeeper/internal/dbx"
	"github.com/dmitrijs2005/recipekeeper/internal/server/models"
	"github.com/dmitrijs2005/recipekeeper/internal/server/repositories/ingredients"
	"github.com/dmitrijs2005/recipekeeper/internal/server/repositories/recipes"
	"github.com/dmitrijs2005/recipekeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/recipekeeper/internal/server/repositories/tags"
	"github.com/dmitrijs2005/recipekeeper/internal/server/repositories/users"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return sqlx.NewDb(db, "sqlmock"), mock
}

// --- users ---

type memUsers struct {
	mu          sync.Mutex
	byID        map[string]*models.User
	seq         int
	createCalls int
	getErr      error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*models.User{}}
}

func (r *memUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	for _, existing := range r.byID {
		if existing.Email == u.Email {
			return nil, fmt.Errorf("email %q: %w", u.Email, common.ErrUniqueViolation)
		}
	}
	r.seq++
	u.ID = fmt.Sprintf("u-%d", r.seq)
	u.CreatedAt = time.Now()
	c := *u
	r.byID[u.ID] = &c
	return u, nil
}

func (r *memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, u := range r.byID {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (r *memUsers) Update(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.byID {
		if id != u.ID && existing.Email == u.Email {
			return fmt.Errorf("email %q: %w", u.Email, common.ErrUniqueViolation)
		}
	}
	cur, ok := r.byID[u.ID]
	if !ok {
		return common.ErrorNotFound
	}
	pw := cur.Password
	c := *u
	c.Password = pw
	r.byID[u.ID] = &c
	return nil
}

func (r *memUsers) SetPassword(ctx context.Context, id string, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Password = password
	return nil
}

func (r *memUsers) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// --- refresh tokens ---

type memRefresh struct {
	mu        sync.Mutex
	tokens    map[string]*models.RefreshToken
	findErr   error
	delErr    error
	createErr error
}

func newMemRefresh() *memRefresh {
	return &memRefresh{tokens: map[string]*models.RefreshToken{}}
}

func (r *memRefresh) Create(ctx context.Context, userID string, token string, validity time.Duration) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token] = &models.RefreshToken{UserID: userID, Token: token, Expires: time.Now().Add(validity)}
	return nil
}

func (r *memRefresh) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *t
	return &c, nil
}

func (r *memRefresh) Delete(ctx context.Context, token string) error {
	if r.delErr != nil {
		return r.delErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
	return nil
}

func (r *memRefresh) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, t := range r.tokens {
		if t.Expires.Before(now) {
			delete(r.tokens, k)
			n++
		}
	}
	return n, nil
}

// --- tags and ingredients ---

type memTags struct {
	items []*models.Tag
	err   error
}

func (r *memTags) List(ctx context.Context, userID string, assignedOnly bool) ([]*models.Tag, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := []*models.Tag{}
	for _, t := range r.items {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

func (r *memTags) Create(ctx context.Context, t *models.Tag) (*models.Tag, error) {
	if r.err != nil {
		return nil, r.err
	}
	t.ID = int64(len(r.items) + 1)
	r.items = append(r.items, t)
	return t, nil
}

func (r *memTags) GetByIDs(ctx context.Context, userID string, ids []int64) ([]*models.Tag, error) {
	out := []*models.Tag{}
	for _, t := range r.items {
		if t.UserID == userID && slices.Contains(ids, t.ID) {
			out = append(out, t)
		}
	}
	return out, nil
}

type memIngredients struct {
	items []*models.Ingredient
	err   error
}

func (r *memIngredients) List(ctx context.Context, userID string, assignedOnly bool) ([]*models.Ingredient, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := []*models.Ingredient{}
	for _, i := range r.items {
		if i.UserID == userID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name > out[b].Name })
	return out, nil
}

func (r *memIngredients) Create(ctx context.Context, i *models.Ingredient) (*models.Ingredient, error) {
	if r.err != nil {
		return nil, r.err
	}
	i.ID = int64(len(r.items) + 1)
	r.items = append(r.items, i)
	return i, nil
}

func (r *memIngredients) GetByIDs(ctx context.Context, userID string, ids []int64) ([]*models.Ingredient, error) {
	out := []*models.Ingredient{}
	for _, i := range r.items {
		if i.UserID == userID && slices.Contains(ids, i.ID) {
			out = append(out, i)
		}
	}
	return out, nil
}

// --- recipes ---

type memRecipe struct {
	rc            models.Recipe
	tagIDs        []int64
	ingredientIDs []int64
}

type memRecipes struct {
	items     map[int64]*memRecipe
	seq       int64
	updateErr error
	lastList  recipes.Filter
}

func newMemRecipes() *memRecipes {
	return &memRecipes{items: map[int64]*memRecipe{}}
}

func (r *memRecipes) build(m *memRecipe) *models.Recipe {
	c := m.rc
	c.Tags = []*models.Tag{}
	for _, id := range m.tagIDs {
		c.Tags = append(c.Tags, &models.Tag{ID: id})
	}
	c.Ingredients = []*models.Ingredient{}
	for _, id := range m.ingredientIDs {
		c.Ingredients = append(c.Ingredients, &models.Ingredient{ID: id})
	}
	return &c
}

func (r *memRecipes) List(ctx context.Context, userID string, filter recipes.Filter) ([]*models.Recipe, error) {
	r.lastList = filter
	out := []*models.Recipe{}
	for _, m := range r.items {
		if m.rc.UserID == userID {
			out = append(out, r.build(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memRecipes) Get(ctx context.Context, userID string, id int64) (*models.Recipe, error) {
	m, ok := r.items[id]
	if !ok || m.rc.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return r.build(m), nil
}

func (r *memRecipes) Create(ctx context.Context, rc *models.Recipe) (*models.Recipe, error) {
	r.seq++
	rc.ID = r.seq
	r.items[rc.ID] = &memRecipe{rc: *rc}
	return rc, nil
}

func (r *memRecipes) Update(ctx context.Context, rc *models.Recipe) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	m, ok := r.items[rc.ID]
	if !ok || m.rc.UserID != rc.UserID {
		return common.ErrorNotFound
	}
	m.rc = *rc
	m.rc.Tags, m.rc.Ingredients = nil, nil
	return nil
}

func (r *memRecipes) Delete(ctx context.Context, userID string, id int64) error {
	m, ok := r.items[id]
	if !ok || m.rc.UserID != userID {
		return common.ErrorNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memRecipes) SetTags(ctx context.Context, recipeID int64, ids []int64) error {
	r.items[recipeID].tagIDs = slices.Clone(ids)
	return nil
}

func (r *memRecipes) SetIngredients(ctx context.Context, recipeID int64, ids []int64) error {
	r.items[recipeID].ingredientIDs = slices.Clone(ids)
	return nil
}

// --- manager ---

type fakeRepoManager struct {
	users       *memUsers
	refresh     *memRefresh
	tags        *memTags
	ingredients *memIngredients
	recipes     *memRecipes
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:       newMemUsers(),
		refresh:     newMemRefresh(),
		tags:        &memTags{},
		ingredients: &memIngredients{},
		recipes:     newMemRecipes(),
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error        { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository                 { return m.users }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository { return m.refresh }
func (m *fakeRepoManager) Tags(db dbx.DBTX) tags.Repository                   { return m.tags }
func (m *fakeRepoManager) Ingredients(db dbx.DBTX) ingredients.Repository     { return m.ingredients }
func (m *fakeRepoManager) Recipes(db dbx.DBTX) recipes.Repository             { return m.recipes }

// --- storage ---

type memStorage struct {
	objects map[string][]byte
	types   map[string]string
	deleted []string
	saveErr error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *memStorage) Save(ctx context.Context, key string, r io.Reader, contentType string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	s.objects[key] = buf.Bytes()
	s.types[key] = contentType
	return nil
}

func (s *memStorage) URL(ctx context.Context, key string) (string, error) {
	return "/media/" + key, nil
}

func (s *memStorage) Delete(ctx context.Context, key string) error {
	s.deleted = append(s.deleted, key)
	delete(s.objects, key)
	return nil
}
