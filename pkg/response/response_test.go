package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	appErrors "github.com/zacode-app/zacode-auth/pkg/errors"
)

func performRequest(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/test", handler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	r.ServeHTTP(w, req)
	return w
}

func TestSuccessEnvelope(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Success(c, http.StatusCreated, gin.H{"message": "created"})
	})

	require.Equal(t, http.StatusCreated, w.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Contains(t, body, "data")
	require.NotContains(t, body, "error")
}

func TestErrorEnvelope(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, appErrors.ErrInvalidCredentials)
	})

	require.Equal(t, http.StatusUnauthorized, w.Code)

	var body struct {
		Error *ErrorInfo `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	require.Equal(t, "Invalid email or password", body.Error.Message)
	require.Equal(t, "INVALID_CREDENTIALS", body.Error.Code)
}

func TestErrorDefaultsToInternal(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, nil)
	})

	require.Equal(t, http.StatusInternalServerError, w.Code)
}
