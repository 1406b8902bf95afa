package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"trackit/internal/store"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad token", ErrUnauthenticated), http.StatusUnauthorized},
		{fmt.Errorf("%w: task 10", ErrNotFoundOrForbidden), http.StatusNotFound},
		{fmt.Errorf("%w: status 7", ErrInvalidArgument), http.StatusBadRequest},
		{fmt.Errorf("%w: version", ErrConflict), http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestFromStore(t *testing.T) {
	tests := []struct {
		in   error
		want error
	}{
		{store.ErrNotFound, ErrNotFoundOrForbidden},
		{store.ErrDuplicate, ErrConflict},
		{fmt.Errorf("update: %w", store.ErrVersionMismatch), ErrConflict},
	}
	for _, tt := range tests {
		if got := FromStore(tt.in, "task 1"); !errors.Is(got, tt.want) {
			t.Errorf("FromStore(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if FromStore(nil, "x") != nil {
		t.Error("FromStore(nil) != nil")
	}
	other := errors.New("boom")
	if FromStore(other, "x") != other {
		t.Error("unknown errors should pass through")
	}
}
