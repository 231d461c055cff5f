package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	emailaddress "github.com/mcnijman/go-emailaddress"
	"go.uber.org/multierr"
)

// maxJSONBody caps request bodies of the JSON endpoints.
const maxJSONBody = 1 << 20

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a single JSON document from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return multierr.Append(errInvalidInput, errors.New("request body is empty"))
		}
		return multierr.Append(errInvalidInput, fmt.Errorf("malformed request body: %v", err))
	}
	return nil
}

// validateStruct runs the struct tags of d and returns one error per failed
// field, aggregated with multierr.
func (a *API) validateStruct(d any) error {
	err := a.validate.Struct(d)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return multierr.Append(errInvalidInput, err)
	}

	out := errInvalidInput
	for _, fe := range verrs {
		out = multierr.Append(out, fieldError(fe))
	}
	return out
}

func fieldError(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s: this field is required", fe.Field())
	case "min":
		return fmt.Errorf("%s: ensure this field has at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Errorf("%s: ensure this field has no more than %s characters", fe.Field(), fe.Param())
	case "gte":
		return fmt.Errorf("%s: ensure this value is greater than or equal to %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Errorf("%s: ensure this value is less than or equal to %s", fe.Field(), fe.Param())
	default:
		return fmt.Errorf("%s: failed %q validation", fe.Field(), fe.Tag())
	}
}

// checkEmail appends a field error to errs when email is not a valid address.
func checkEmail(errs error, email string) error {
	if email == "" {
		return errs
	}
	if _, err := emailaddress.Parse(email); err != nil {
		return multierr.Append(orInvalid(errs), errors.New("email: enter a valid email address"))
	}
	return errs
}
