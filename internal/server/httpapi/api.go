// Package httpapi serves the recipekeeper REST API: account registration,
// token issuance, the caller's profile and the owned tag, ingredient and
// recipe collections.
package httpapi

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/recipekeeper/internal/logging"
	"github.com/dmitrijs2005/recipekeeper/internal/server/models"
	"github.com/dmitrijs2005/recipekeeper/internal/server/services"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

type UserService interface {
	CreateUser(ctx context.Context, email, password string, fields *services.UserFields) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateProfile(ctx context.Context, id string, upd services.ProfileUpdate) (*models.User, error)
}

type TagService interface {
	List(ctx context.Context, userID string, assignedOnly bool) ([]*models.Tag, error)
	Create(ctx context.Context, userID, name string) (*models.Tag, error)
}

type IngredientService interface {
	List(ctx context.Context, userID string, assignedOnly bool) ([]*models.Ingredient, error)
	Create(ctx context.Context, userID, name string) (*models.Ingredient, error)
}

type RecipeService interface {
	List(ctx context.Context, userID string, filter services.RecipeFilter) ([]*models.Recipe, error)
	Get(ctx context.Context, userID string, id int64) (*models.Recipe, error)
	Create(ctx context.Context, userID string, in services.RecipeInput) (*models.Recipe, error)
	Update(ctx context.Context, userID string, id int64, in services.RecipeInput) (*models.Recipe, error)
	Patch(ctx context.Context, userID string, id int64, p services.RecipePatch) (*models.Recipe, error)
	Delete(ctx context.Context, userID string, id int64) error
	UploadImage(ctx context.Context, userID string, id int64, filename string, body io.Reader) (*models.Recipe, error)
	ImageURL(ctx context.Context, rc *models.Recipe) (string, error)
}

// Services groups the business logic the handlers call into.
type Services struct {
	Users       UserService
	Tags        TagService
	Ingredients IngredientService
	Recipes     RecipeService
}

// Options tune the router.
//
// MediaRoot and MediaURL, when both set and MediaURL is a path, make the
// router serve locally stored uploads under MediaURL.
type Options struct {
	JWTSecret      []byte
	TokenRateLimit float64
	TokenRateBurst int
	MediaRoot      string
	MediaURL       string
}

type API struct {
	logger       logging.Logger
	svc          Services
	jwtSecret    []byte
	tokenLimiter *clientLimiter
	validate     *validator.Validate
}

// NewRouter wires every route of the API behind the request logger.
func NewRouter(l logging.Logger, svc Services, opts Options) http.Handler {
	a := &API{
		logger:       l.With("module", "http_api"),
		svc:          svc,
		jwtSecret:    opts.JWTSecret,
		tokenLimiter: newClientLimiter(opts.TokenRateLimit, opts.TokenRateBurst),
		validate:     newValidator(),
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		renderError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		renderError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	user := r.PathPrefix("/api/user").Subrouter()
	user.Handle("/create/", http.HandlerFunc(a.createUser)).Methods(http.MethodPost)
	user.Handle("/token/", a.throttle(http.HandlerFunc(a.createToken))).Methods(http.MethodPost)
	user.Handle("/token/refresh/", a.throttle(http.HandlerFunc(a.refreshToken))).Methods(http.MethodPost)
	user.Handle("/me/", a.authenticate(http.HandlerFunc(a.getMe))).Methods(http.MethodGet)
	user.Handle("/me/", a.authenticate(http.HandlerFunc(a.updateMe))).Methods(http.MethodPut, http.MethodPatch)

	recipe := r.PathPrefix("/api/recipe").Subrouter()
	recipe.Use(a.authenticate)
	recipe.HandleFunc("/tags/", a.listTags).Methods(http.MethodGet)
	recipe.HandleFunc("/tags/", a.createTag).Methods(http.MethodPost)
	recipe.HandleFunc("/ingredients/", a.listIngredients).Methods(http.MethodGet)
	recipe.HandleFunc("/ingredients/", a.createIngredient).Methods(http.MethodPost)
	recipe.HandleFunc("/recipes/", a.listRecipes).Methods(http.MethodGet)
	recipe.HandleFunc("/recipes/", a.createRecipe).Methods(http.MethodPost)
	recipe.HandleFunc("/recipes/{id:[0-9]+}/", a.getRecipe).Methods(http.MethodGet)
	recipe.HandleFunc("/recipes/{id:[0-9]+}/", a.updateRecipe).Methods(http.MethodPut, http.MethodPatch)
	recipe.HandleFunc("/recipes/{id:[0-9]+}/", a.deleteRecipe).Methods(http.MethodDelete)
	recipe.HandleFunc("/recipes/{id:[0-9]+}/upload-image/", a.uploadRecipeImage).Methods(http.MethodPost)

	if opts.MediaRoot != "" && strings.HasPrefix(opts.MediaURL, "/") {
		prefix := strings.TrimSuffix(opts.MediaURL, "/") + "/"
		r.PathPrefix(prefix).Handler(http.StripPrefix(prefix, http.FileServer(http.Dir(opts.MediaRoot)))).
			Methods(http.MethodGet, http.MethodHead)
	}

	return Chain(r, RequestLogger(a.logger))
}
