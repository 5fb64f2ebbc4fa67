package httpx

import (
	"errors"
	"net/http"

	"github.com/truemargin/truemargin/internal/shared"
)

// ErrValidation marks malformed or rejected request input.
var ErrValidation = errors.New("validation failed")

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrAccessDenied):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrUpstream):
		Problem(w, http.StatusBadGateway, "Upstream Failure", "order source unavailable")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
