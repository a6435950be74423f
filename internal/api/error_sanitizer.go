package api

import (
	"errors"
	"net/http"

	"github.com/goyoulink/affiliate-tracker/internal/pkg/httputil"
	"github.com/goyoulink/affiliate-tracker/internal/service/affiliate"
)

// respondServiceError maps affiliate service errors to HTTP responses.
// Validation errors are safe to show; anything else is logged and returned
// as a generic 500.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, affiliate.ErrNotFound), errors.Is(err, affiliate.ErrOrderNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, affiliate.ErrNameRequired),
		errors.Is(err, affiliate.ErrInvalidType),
		errors.Is(err, affiliate.ErrInvalidStatus),
		errors.Is(err, affiliate.ErrInvalidRate),
		errors.Is(err, affiliate.ErrInvalidAmount),
		errors.Is(err, affiliate.ErrInactive):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, affiliate.ErrDuplicateRefCode),
		errors.Is(err, affiliate.ErrDuplicateShortCode),
		errors.Is(err, affiliate.ErrDuplicateOrder),
		errors.Is(err, affiliate.ErrPayoutInProgress),
		errors.Is(err, affiliate.ErrOrderConflict):
		httputil.Error(w, http.StatusConflict, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
