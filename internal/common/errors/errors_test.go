package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", NotFound("board", "b1"), http.StatusNotFound},
		{"forbidden", Forbidden("nope"), http.StatusForbidden},
		{"validation", ValidationError("title", "must not be empty"), http.StatusBadRequest},
		{"store", StoreUnavailable(errors.New("disk on fire")), http.StatusServiceUnavailable},
		{"conflict", Conflict("email taken"), http.StatusConflict},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, GetHTTPStatus(tt.err))
		})
	}
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("moving card: %w", Forbidden("viewer"))
	assert.True(t, IsForbidden(wrapped))
	assert.False(t, IsNotFound(wrapped))

	assert.True(t, IsBadRequest(ValidationError("role", "unknown")))
	assert.True(t, IsUnavailable(StoreUnavailable(errors.New("timeout"))))
	assert.True(t, IsUnauthorized(Unauthorized("expired")))
	assert.True(t, IsConflict(Conflict("dup")))
}

func TestStoreUnavailableUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := StoreUnavailable(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWrapPreservesCode(t *testing.T) {
	err := Wrap(NotFound("card", "c1"), "move failed")
	assert.Equal(t, ErrCodeNotFound, err.Code)
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus)

	assert.Nil(t, Wrap(nil, "nothing"))
	assert.Equal(t, ErrCodeInternalError, Wrap(errors.New("x"), "y").Code)
}

func TestAs(t *testing.T) {
	assert.Equal(t, ErrCodeForbidden, As(Forbidden("no")).Code)
	assert.Equal(t, ErrCodeInternalError, As(errors.New("raw")).Code)
}
