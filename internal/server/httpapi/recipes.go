package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/recipekeeper/internal/server/models"
	"github.com/dmitrijs2005/recipekeeper/internal/server/services"
	"github.com/gorilla/mux"
	"go.uber.org/multierr"
)

// maxImageBody caps the multipart body of an image upload.
const maxImageBody = 10 << 20

type nameRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

type recipeRequest struct {
	Title       string      `json:"title" validate:"required,max=255"`
	TimeMinutes *int        `json:"time_minutes" validate:"required,gte=0,lte=2147483647"`
	Price       json.Number `json:"price" validate:"required"`
	Link        string      `json:"link" validate:"max=255"`
	Tags        []int64     `json:"tags"`
	Ingredients []int64     `json:"ingredients"`
}

type recipePatchRequest struct {
	Title       *string      `json:"title" validate:"omitnil,min=1,max=255"`
	TimeMinutes *int         `json:"time_minutes" validate:"omitnil,gte=0,lte=2147483647"`
	Price       *json.Number `json:"price"`
	Link        *string      `json:"link" validate:"omitnil,max=255"`
	Tags        *[]int64     `json:"tags"`
	Ingredients *[]int64     `json:"ingredients"`
}

// recipeResponse is the list representation: related records by id.
type recipeResponse struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	TimeMinutes int     `json:"time_minutes"`
	Price       string  `json:"price"`
	Link        string  `json:"link"`
	Tags        []int64 `json:"tags"`
	Ingredients []int64 `json:"ingredients"`
}

type recipeDetailResponse struct {
	ID          int64                `json:"id"`
	Title       string               `json:"title"`
	TimeMinutes int                  `json:"time_minutes"`
	Price       string               `json:"price"`
	Link        string               `json:"link"`
	Tags        []*models.Tag        `json:"tags"`
	Ingredients []*models.Ingredient `json:"ingredients"`
	Image       string               `json:"image"`
}

type recipeImageResponse struct {
	ID    int64  `json:"id"`
	Image string `json:"image"`
}

func newRecipeResponse(rc *models.Recipe) recipeResponse {
	return recipeResponse{
		ID:          rc.ID,
		Title:       rc.Title,
		TimeMinutes: rc.TimeMinutes,
		Price:       rc.Price,
		Link:        rc.Link,
		Tags:        nonNil(rc.TagIDs()),
		Ingredients: nonNil(rc.IngredientIDs()),
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (a *API) recipeDetail(r *http.Request, rc *models.Recipe) (recipeDetailResponse, error) {
	image, err := a.svc.Recipes.ImageURL(r.Context(), rc)
	if err != nil {
		return recipeDetailResponse{}, err
	}
	return recipeDetailResponse{
		ID:          rc.ID,
		Title:       rc.Title,
		TimeMinutes: rc.TimeMinutes,
		Price:       rc.Price,
		Link:        rc.Link,
		Tags:        nonNil(rc.Tags),
		Ingredients: nonNil(rc.Ingredients),
		Image:       image,
	}, nil
}

// assignedOnly reads ?assigned_only=; "1" and "true" enable it.
func assignedOnly(r *http.Request) (bool, error) {
	v := r.URL.Query().Get("assigned_only")
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, multierr.Append(errInvalidInput, fmt.Errorf("assigned_only: %q is not a boolean", v))
	}
	return b, nil
}

// parseIDList parses a comma separated list such as "1,2,3".
func parseIDList(name, v string) ([]int64, error) {
	if v == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(v, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a valid id", name, part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func recipeID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

func (a *API) listTags(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	only, err := assignedOnly(r)
	if err != nil {
		renderValidation(w, err)
		return
	}

	tags, err := a.svc.Tags.List(r.Context(), userID, only)
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, nonNil(tags))
}

func (a *API) createTag(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		renderValidation(w, err)
		return
	}
	if err := a.validateStruct(&req); err != nil {
		renderValidation(w, err)
		return
	}

	tag, err := a.svc.Tags.Create(r.Context(), userID, req.Name)
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, tag)
}

func (a *API) listIngredients(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	only, err := assignedOnly(r)
	if err != nil {
		renderValidation(w, err)
		return
	}

	ingredients, err := a.svc.Ingredients.List(r.Context(), userID, only)
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, nonNil(ingredients))
}

func (a *API) createIngredient(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		renderValidation(w, err)
		return
	}
	if err := a.validateStruct(&req); err != nil {
		renderValidation(w, err)
		return
	}

	ingredient, err := a.svc.Ingredients.Create(r.Context(), userID, req.Name)
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}
	renderJSON(w, http.StatusCreated, ingredient)
}

func (a *API) listRecipes(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	q := r.URL.Query()
	var errs error
	tagIDs, err := parseIDList("tags", q.Get("tags"))
	if err != nil {
		errs = multierr.Append(orInvalid(errs), err)
	}
	ingredientIDs, err := parseIDList("ingredients", q.Get("ingredients"))
	if err != nil {
		errs = multierr.Append(orInvalid(errs), err)
	}
	if errs != nil {
		renderValidation(w, errs)
		return
	}

	list, err := a.svc.Recipes.List(r.Context(), userID, services.RecipeFilter{
		TagIDs:        tagIDs,
		IngredientIDs: ingredientIDs,
	})
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}

	out := make([]recipeResponse, 0, len(list))
	for _, rc := range list {
		out = append(out, newRecipeResponse(rc))
	}
	renderJSON(w, http.StatusOK, out)
}

func (a *API) createRecipe(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req recipeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		renderValidation(w, err)
		return
	}
	if err := a.validateStruct(&req); err != nil {
		renderValidation(w, err)
		return
	}

	rc, err := a.svc.Recipes.Create(r.Context(), userID, req.input())
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}
	a.renderRecipe(w, r, http.StatusCreated, rc)
}

func (a *API) getRecipe(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	id, ok := recipeID(r)
	if !ok {
		renderError(w, http.StatusNotFound, "not found")
		return
	}

	rc, err := a.svc.Recipes.Get(r.Context(), userID, id)
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}
	a.renderRecipe(w, r, http.StatusOK, rc)
}

// updateRecipe handles PUT as a full replacement and PATCH as a partial one.
func (a *API) updateRecipe(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	id, ok := recipeID(r)
	if !ok {
		renderError(w, http.StatusNotFound, "not found")
		return
	}

	var (
		rc  *models.Recipe
		err error
	)
	if r.Method == http.MethodPut {
		var req recipeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			renderValidation(w, err)
			return
		}
		if err := a.validateStruct(&req); err != nil {
			renderValidation(w, err)
			return
		}
		rc, err = a.svc.Recipes.Update(r.Context(), userID, id, req.input())
	} else {
		var req recipePatchRequest
		if err := decodeJSON(w, r, &req); err != nil {
			renderValidation(w, err)
			return
		}
		if err := a.validateStruct(&req); err != nil {
			renderValidation(w, err)
			return
		}
		rc, err = a.svc.Recipes.Patch(r.Context(), userID, id, req.patch())
	}
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}
	a.renderRecipe(w, r, http.StatusOK, rc)
}

func (a *API) deleteRecipe(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	id, ok := recipeID(r)
	if !ok {
		renderError(w, http.StatusNotFound, "not found")
		return
	}

	if err := a.svc.Recipes.Delete(r.Context(), userID, id); err != nil {
		a.renderServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) uploadRecipeImage(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())
	id, ok := recipeID(r)
	if !ok {
		renderError(w, http.StatusNotFound, "not found")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBody)
	file, header, err := r.FormFile("image")
	if err != nil {
		msg := "image: this field is required"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "image: file is too large"
		}
		renderValidation(w, multierr.Append(errInvalidInput, errors.New(msg)))
		return
	}
	defer file.Close()

	rc, err := a.svc.Recipes.UploadImage(r.Context(), userID, id, header.Filename, file)
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}

	image, err := a.svc.Recipes.ImageURL(r.Context(), rc)
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, recipeImageResponse{ID: rc.ID, Image: image})
}

func (a *API) renderRecipe(w http.ResponseWriter, r *http.Request, code int, rc *models.Recipe) {
	out, err := a.recipeDetail(r, rc)
	if err != nil {
		a.renderServiceError(w, r, err)
		return
	}
	renderJSON(w, code, out)
}

func (req *recipeRequest) input() services.RecipeInput {
	return services.RecipeInput{
		Title:         req.Title,
		TimeMinutes:   *req.TimeMinutes,
		Price:         req.Price.String(),
		Link:          req.Link,
		TagIDs:        req.Tags,
		IngredientIDs: req.Ingredients,
	}
}

func (req *recipePatchRequest) patch() services.RecipePatch {
	p := services.RecipePatch{
		Title:         req.Title,
		TimeMinutes:   req.TimeMinutes,
		Link:          req.Link,
		TagIDs:        req.Tags,
		IngredientIDs: req.Ingredients,
	}
	if req.Price != nil {
		price := req.Price.String()
		p.Price = &price
	}
	return p
}
