package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorMessageAndInternal(t *testing.T) {
	base := New("TEST", "something failed", http.StatusBadRequest)
	require.Equal(t, "something failed", base.Error())

	inner := stderrors.New("connection refused")
	wrapped := base.WithInternal(inner)
	require.Equal(t, "something failed: connection refused", wrapped.Error())
	require.ErrorIs(t, wrapped, inner)

	// The original sentinel must not be mutated.
	require.Nil(t, base.Internal)
}

func TestFromError(t *testing.T) {
	require.Nil(t, FromError(nil))

	appErr := FromError(ErrInvalidCredentials)
	require.Equal(t, http.StatusUnauthorized, appErr.StatusCode)
	require.Equal(t, "INVALID_CREDENTIALS", appErr.Code)

	generic := FromError(stderrors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, generic.StatusCode)

	// Wrapped AppErrors are still recovered.
	nested := fmt.Errorf("handler: %w", ErrUserNotFound)
	require.Equal(t, http.StatusNotFound, FromError(nested).StatusCode)
}

func TestDeliveryErrorsAreServerFailures(t *testing.T) {
	for _, err := range []*AppError{ErrEmailLimitExceeded, ErrEmailConfig, ErrEmailSend} {
		require.Equal(t, http.StatusInternalServerError, err.StatusCode)
	}
	require.NotEqual(t, ErrEmailLimitExceeded.Code, ErrEmailSend.Code)
}

func TestConstructors(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, NewBadRequest("nope").StatusCode)
	require.Equal(t, http.StatusUnauthorized, NewUnauthorized("nope").StatusCode)
	require.Equal(t, http.StatusBadRequest, NewConflict("taken").StatusCode)
	require.Equal(t, "CONFLICT", NewConflict("taken").Code)
}
