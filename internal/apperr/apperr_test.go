package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/crewdeck/crewdeck/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrom_PassesTypedErrorsThrough(t *testing.T) {
	orig := apperr.NotFound("employee")
	got := apperr.From(fmt.Errorf("load employee: %w", orig))
	assert.Equal(t, http.StatusNotFound, got.Status)
	assert.Equal(t, "not_found", got.Code)
}

func TestInternal_PreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	ae := apperr.Internal(cause)

	require.Equal(t, http.StatusInternalServerError, ae.Status)
	// The client-facing detail stays generic while the cause remains
	// reachable for server-side logging.
	assert.Equal(t, "internal server error", ae.Detail)
	assert.ErrorIs(t, ae, cause)
	assert.Contains(t, ae.Error(), "disk full")
}

func TestFrom_WrapsUnknownErrorsAsInternal(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	ae := apperr.From(cause)
	assert.Equal(t, http.StatusInternalServerError, ae.Status)
	assert.ErrorIs(t, ae, cause)
}

func TestIsStatus(t *testing.T) {
	err := fmt.Errorf("save: %w", apperr.Conflict("duplicate"))
	assert.True(t, apperr.IsStatus(err, http.StatusConflict))
	assert.False(t, apperr.IsStatus(err, http.StatusNotFound))
	assert.False(t, apperr.IsStatus(errors.New("plain"), http.StatusConflict))
}
