package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/recipekeeper/internal/logging"
	"github.com/dmitrijs2005/recipekeeper/internal/server/auth"
	"github.com/dmitrijs2005/recipekeeper/internal/server/models"
	"github.com/dmitrijs2005/recipekeeper/internal/server/services"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	testUserID = "5b7c3f0e-2f55-4d4c-9a59-0c1b6f1f7a10"
)

var errUnexpectedCall = errors.New("unexpected call")

type stubUsers struct {
	createUser    func(ctx context.Context, email, password string, fields *services.UserFields) (*models.User, error)
	login         func(ctx context.Context, email, password string) (*services.TokenPair, error)
	refreshToken  func(ctx context.Context, token string) (*services.TokenPair, error)
	getByID       func(ctx context.Context, id string) (*models.User, error)
	updateProfile func(ctx context.Context, id string, upd services.ProfileUpdate) (*models.User, error)
}

func (s *stubUsers) CreateUser(ctx context.Context, email, password string, fields *services.UserFields) (*models.User, error) {
	if s.createUser == nil {
		return nil, errUnexpectedCall
	}
	return s.createUser(ctx, email, password, fields)
}

func (s *stubUsers) Login(ctx context.Context, email, password string) (*services.TokenPair, error) {
	if s.login == nil {
		return nil, errUnexpectedCall
	}
	return s.login(ctx, email, password)
}

func (s *stubUsers) RefreshToken(ctx context.Context, token string) (*services.TokenPair, error) {
	if s.refreshToken == nil {
		return nil, errUnexpectedCall
	}
	return s.refreshToken(ctx, token)
}

func (s *stubUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	if s.getByID == nil {
		return &models.User{ID: id, Email: "test@example.com", IsActive: true}, nil
	}
	return s.getByID(ctx, id)
}

func (s *stubUsers) UpdateProfile(ctx context.Context, id string, upd services.ProfileUpdate) (*models.User, error) {
	if s.updateProfile == nil {
		return nil, errUnexpectedCall
	}
	return s.updateProfile(ctx, id, upd)
}

type stubTags struct {
	list   func(ctx context.Context, userID string, assignedOnly bool) ([]*models.Tag, error)
	create func(ctx context.Context, userID, name string) (*models.Tag, error)
}

func (s *stubTags) List(ctx context.Context, userID string, assignedOnly bool) ([]*models.Tag, error) {
	if s.list == nil {
		return nil, errUnexpectedCall
	}
	return s.list(ctx, userID, assignedOnly)
}

func (s *stubTags) Create(ctx context.Context, userID, name string) (*models.Tag, error) {
	if s.create == nil {
		return nil, errUnexpectedCall
	}
	return s.create(ctx, userID, name)
}

type stubIngredients struct {
	list   func(ctx context.Context, userID string, assignedOnly bool) ([]*models.Ingredient, error)
	create func(ctx context.Context, userID, name string) (*models.Ingredient, error)
}

func (s *stubIngredients) List(ctx context.Context, userID string, assignedOnly bool) ([]*models.Ingredient, error) {
	if s.list == nil {
		return nil, errUnexpectedCall
	}
	return s.list(ctx, userID, assignedOnly)
}

func (s *stubIngredients) Create(ctx context.Context, userID, name string) (*models.Ingredient, error) {
	if s.create == nil {
		return nil, errUnexpectedCall
	}
	return s.create(ctx, userID, name)
}

type stubRecipes struct {
	list        func(ctx context.Context, userID string, filter services.RecipeFilter) ([]*models.Recipe, error)
	get         func(ctx context.Context, userID string, id int64) (*models.Recipe, error)
	create      func(ctx context.Context, userID string, in services.RecipeInput) (*models.Recipe, error)
	update      func(ctx context.Context, userID string, id int64, in services.RecipeInput) (*models.Recipe, error)
	patch       func(ctx context.Context, userID string, id int64, p services.RecipePatch) (*models.Recipe, error)
	delete      func(ctx context.Context, userID string, id int64) error
	uploadImage func(ctx context.Context, userID string, id int64, filename string, body io.Reader) (*models.Recipe, error)
}

func (s *stubRecipes) List(ctx context.Context, userID string, filter services.RecipeFilter) ([]*models.Recipe, error) {
	if s.list == nil {
		return nil, errUnexpectedCall
	}
	return s.list(ctx, userID, filter)
}

func (s *stubRecipes) Get(ctx context.Context, userID string, id int64) (*models.Recipe, error) {
	if s.get == nil {
		return nil, errUnexpectedCall
	}
	return s.get(ctx, userID, id)
}

func (s *stubRecipes) Create(ctx context.Context, userID string, in services.RecipeInput) (*models.Recipe, error) {
	if s.create == nil {
		return nil, errUnexpectedCall
	}
	return s.create(ctx, userID, in)
}

func (s *stubRecipes) Update(ctx context.Context, userID string, id int64, in services.RecipeInput) (*models.Recipe, error) {
	if s.update == nil {
		return nil, errUnexpectedCall
	}
	return s.update(ctx, userID, id, in)
}

func (s *stubRecipes) Patch(ctx context.Context, userID string, id int64, p services.RecipePatch) (*models.Recipe, error) {
	if s.patch == nil {
		return nil, errUnexpectedCall
	}
	return s.patch(ctx, userID, id, p)
}

func (s *stubRecipes) Delete(ctx context.Context, userID string, id int64) error {
	if s.delete == nil {
		return errUnexpectedCall
	}
	return s.delete(ctx, userID, id)
}

func (s *stubRecipes) UploadImage(ctx context.Context, userID string, id int64, filename string, body io.Reader) (*models.Recipe, error) {
	if s.uploadImage == nil {
		return nil, errUnexpectedCall
	}
	return s.uploadImage(ctx, userID, id, filename, body)
}

func (s *stubRecipes) ImageURL(_ context.Context, rc *models.Recipe) (string, error) {
	if rc.Image == "" {
		return "", nil
	}
	return "/media/" + rc.Image, nil
}

// ---- helpers ----

func newTestAPI(svc Services) http.Handler {
	if svc.Users == nil {
		svc.Users = &stubUsers{}
	}
	return NewRouter(logging.Nop(), svc, Options{JWTSecret: []byte(testSecret)})
}

func accessToken(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.GenerateToken(userID, []byte(testSecret), time.Minute)
	require.NoError(t, err)
	return tok
}

// do sends body (JSON encoded unless nil) and returns the recorded response.
func do(t *testing.T, h http.Handler, method, target string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}
