package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/recipekeeper/internal/common"
	"github.com/dmitrijs2005/recipekeeper/internal/server/models"
	"github.com/dmitrijs2005/recipekeeper/internal/server/services"
	"go.uber.org/multierr"
)

type createUserRequest struct {
	Email    string `json:"email" validate:"required,max=255"`
	Password string `json:"password" validate:"required,min=5"`
	Name     string `json:"name" validate:"max=255"`
}

type tokenRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// updateProfileRequest serves PUT and PATCH; PUT additionally requires
// email and password.
type updateProfileRequest struct {
	Email    *string `json:"email" validate:"omitnil,min=1,max=255"`
	Password *string `json:"password" validate:"omitnil,min=5"`
	Name     *string `json:"name" validate:"omitnil,max=255"`
}

type userResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type tokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{Email: u.Email, Name: u.Name}
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		renderValidation(w, err)
		return
	}
	if err := checkEmail(a.validateStruct(&req), req.Email); err != nil {
		renderValidation(w, err)
		return
	}

	user, err := a.svc.Users.CreateUser(r.Context(), req.Email, req.Password, &services.UserFields{Name: req.Name})
	if err != nil {
		if errors.Is(err, common.ErrUniqueViolation) {
			renderValidation(w, multierr.Append(errInvalidInput, errors.New("email: user with this email already exists")))
			return
		}
		a.renderServiceError(w, r, err)
		return
	}

	renderJSON(w, http.StatusCreated, newUserResponse(user))
}

// createToken issues a token pair. Bad credentials answer 400, not 401.
func (a *API) createToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		renderValidation(w, err)
		return
	}
	if err := a.validateStruct(&req); err != nil {
		renderValidation(w, err)
		return
	}

	pair, err := a.svc.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			renderValidation(w, multierr.Append(errInvalidInput, errors.New("unable to authenticate with provided credentials")))
			return
		}
		a.renderServiceError(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, tokenResponse{Token: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (a *API) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		renderValidation(w, err)
		return
	}
	if err := a.validateStruct(&req); err != nil {
		renderValidation(w, err)
		return
	}

	pair, err := a.svc.Users.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, common.ErrInvalidToken) || errors.Is(err, common.ErrRefreshTokenExpired) {
			renderValidation(w, multierr.Append(errInvalidInput, errors.New("refresh_token: token is invalid or expired")))
			return
		}
		a.renderServiceError(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, tokenResponse{Token: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (a *API) getMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	user, err := a.svc.Users.GetByID(r.Context(), userID)
	if err != nil {
		a.renderMeError(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, newUserResponse(user))
}

func (a *API) updateMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		renderValidation(w, err)
		return
	}

	errs := a.validateStruct(&req)
	if r.Method == http.MethodPut {
		if req.Email == nil {
			errs = multierr.Combine(orInvalid(errs), errors.New("email: this field is required"))
		}
		if req.Password == nil {
			errs = multierr.Combine(orInvalid(errs), errors.New("password: this field is required"))
		}
	}
	if req.Email != nil {
		errs = checkEmail(errs, *req.Email)
	}
	if errs != nil {
		renderValidation(w, errs)
		return
	}

	user, err := a.svc.Users.UpdateProfile(r.Context(), userID, services.ProfileUpdate{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, common.ErrUniqueViolation) {
			renderValidation(w, multierr.Append(errInvalidInput, errors.New("email: user with this email already exists")))
			return
		}
		a.renderMeError(w, r, err)
		return
	}

	renderJSON(w, http.StatusOK, newUserResponse(user))
}

// renderMeError treats a vanished account like a revoked token.
func (a *API) renderMeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, common.ErrorNotFound) {
		renderError(w, http.StatusUnauthorized, "user not found")
		return
	}
	a.renderServiceError(w, r, err)
}

func orInvalid(errs error) error {
	if errs == nil {
		return errInvalidInput
	}
	return errs
}
