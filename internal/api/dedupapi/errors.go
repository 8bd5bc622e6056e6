package dedupapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gotrs-io/deduptickets/internal/dedeperrors"
)

// statusFor is the REST transport's own Kind-to-HTTP-status table.
// The core never imports net/http; each transport owns its mapping.
func statusFor(kind dedeperrors.Kind) int {
	switch kind {
	case dedeperrors.NotFound:
		return http.StatusNotFound
	case dedeperrors.Conflict:
		return http.StatusConflict
	case dedeperrors.InvalidState:
		return http.StatusUnprocessableEntity
	case dedeperrors.DeadlineExceeded:
		return http.StatusGone
	case dedeperrors.MergeConflictKind:
		return http.StatusConflict
	case dedeperrors.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON shape every failed response carries.
type errorBody struct {
	Code      string                      `json:"code"`
	Message   string                      `json:"message"`
	Conflicts []dedeperrors.ConflictEntry `json:"conflicts,omitempty"`
}

// writeError translates err to a status code and JSON body, treating
// anything that isn't a *dedeperrors.Error as an opaque 500.
func writeError(c *gin.Context, err error) {
	derr, ok := err.(*dedeperrors.Error)
	if !ok {
		c.JSON(http.StatusInternalServerError, errorBody{Code: "internal_error", Message: err.Error()})
		return
	}
	c.JSON(statusFor(derr.Kind), errorBody{
		Code:      derr.Code,
		Message:   derr.Message,
		Conflicts: derr.Conflicts,
	})
}
