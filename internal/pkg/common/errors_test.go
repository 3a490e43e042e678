package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCustomErrorIsByCode(t *testing.T) {
	cause := errors.New("status 502")
	wrapped := fmt.Errorf("list page 2: %w", ErrProviderUnavailable.Wrap(cause))

	assert.True(t, errors.Is(wrapped, ErrProviderUnavailable))
	assert.False(t, errors.Is(wrapped, ErrStoreWriteFailed))
	assert.True(t, errors.Is(wrapped, cause))
	assert.Contains(t, wrapped.Error(), "status 502")
}

func TestToResponse(t *testing.T) {
	status, resp := ToResponse(NewValidationError("health preference out of range"), false)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, ErrCodeInvalidRequest, resp.Code)

	status, resp = ToResponse(ErrStaleRequest.Wrap(errors.New("gen 3 < 4")), true)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, ErrCodeStaleRequest, resp.Code)
	assert.Equal(t, "gen 3 < 4", resp.Details)

	status, resp = ToResponse(errors.New("boom"), false)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Empty(t, resp.Details)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-5, 0, 100))
	assert.Equal(t, 100.0, Clamp(130, 0, 100))
	assert.Equal(t, 42.0, Clamp(42, 0, 100))
}
