package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/recipekeeper/internal/common"
	"go.uber.org/multierr"
)

// APIError is the body of every non-2xx response.
type APIError struct {
	Code    int      `json:"code"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

var errInvalidInput = errors.New("invalid input")

func renderJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

func renderError(w http.ResponseWriter, code int, msg string) {
	renderJSON(w, code, APIError{Code: code, Message: msg})
}

// renderValidation writes a 400 listing every aggregated failure in err.
func renderValidation(w http.ResponseWriter, err error) {
	ae := APIError{Code: http.StatusBadRequest, Message: errInvalidInput.Error()}
	for _, e := range multierr.Errors(err) {
		if e == errInvalidInput {
			continue
		}
		ae.Errors = append(ae.Errors, e.Error())
	}
	renderJSON(w, http.StatusBadRequest, ae)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidArgument), errors.Is(err, common.ErrUniqueViolation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// renderServiceError writes err with the status statusFor picks. Internal
// failures are logged and reported without detail.
func (a *API) renderServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	switch code {
	case http.StatusInternalServerError:
		a.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		renderError(w, code, "internal error")
	case http.StatusNotFound:
		renderError(w, code, "not found")
	case http.StatusBadRequest:
		renderJSON(w, code, APIError{Code: code, Message: errInvalidInput.Error(), Errors: []string{err.Error()}})
	default:
		renderError(w, code, err.Error())
	}
}
