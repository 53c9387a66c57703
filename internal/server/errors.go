package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/content-agent/internal/types"
)

// ErrValidation indicates request validation failure.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus maps domain errors to status codes. Conflicts with the
// single-active-run invariant and invalid item transitions both come
// back as 409.
func HTTPStatus(err error) int {
	var (
		conflict     *types.ConflictError
		notFound     *types.NotFoundError
		invalidState *types.InvalidStateError
		validation   *ErrValidation
	)
	switch {
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &invalidState):
		return http.StatusConflict
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
