package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrappedAppErrorKeepsStatus(t *testing.T) {
	err := fmt.Errorf("adjust stock: %w", NewInsufficientStock("i", "w", "15.0000", "10.0000"))

	assert.True(t, IsInsufficientStock(err))
	assert.Equal(t, http.StatusBadRequest, GetHTTPStatus(err))

	appErr, ok := AsAppError(err)
	assert.True(t, ok)
	assert.Equal(t, "10.0000", appErr.Details["available"])
}

func TestPlainErrorIsInternal(t *testing.T) {
	err := errors.New("boom")
	assert.False(t, IsAppError(err))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(err))
	assert.False(t, IsNotFound(err))
}

func TestWithCauseUnwraps(t *testing.T) {
	cause := errors.New("unique violation")
	err := NewDuplicate("item", "sku", "FLOUR-1").WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusConflict, err.HTTPStatus)
	assert.Contains(t, err.Error(), "DUPLICATE_ENTRY")
}
