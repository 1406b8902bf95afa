// Package apperr holds the error kinds that cross the service boundary.
// Services wrap them with context; handlers map them to status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"trackit/internal/store"
)

var (
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrNotFoundOrForbidden = errors.New("not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrConflict            = errors.New("conflict")
)

// HTTPStatus maps an error to its response code; unknown errors are 500.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFoundOrForbidden):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// FromStore translates a persistence error. Missing rows become
// ErrNotFoundOrForbidden, duplicates and stale versions ErrConflict.
func FromStore(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFoundOrForbidden, what)
	case errors.Is(err, store.ErrDuplicate):
		return fmt.Errorf("%w: %s already exists", ErrConflict, what)
	case errors.Is(err, store.ErrVersionMismatch):
		return fmt.Errorf("%w: %s was modified concurrently", ErrConflict, what)
	default:
		return err
	}
}
