package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zacode-app/zacode-auth/internal/auth"
	"github.com/zacode-app/zacode-auth/internal/models"
	"github.com/zacode-app/zacode-auth/internal/services"
	"github.com/zacode-app/zacode-auth/pkg/response"

	apperrors "github.com/zacode-app/zacode-auth/pkg/errors"
)

// Context keys populated by the authentication gate.
const (
	CtxClaimsKey = "authClaims"
	CtxUserIDKey = "userID"
	CtxUserKey   = "authUser"
)

// Auth enforces bearer authentication and loads the account behind the token.
// The user is re-read from the database on every request so revoked or
// deactivated accounts lose access immediately, not at token expiry.
func Auth(jwt *auth.JWTService, users *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := jwt.VerifyAccessToken(token)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, apperrors.ErrInvalidToken)
			c.Abort()
			return
		}

		user, err := users.CurrentUser(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if user == nil {
			// The account behind a still-valid token was deleted. 401, not
			// 404: the resource is the session, not the user record.
			response.Error(c, apperrors.New("USER_NOT_FOUND", "User not found", http.StatusUnauthorized))
			c.Abort()
			return
		}
		if !user.IsActive {
			response.Error(c, apperrors.ErrAccountDeactivated)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxUserKey, user)

		c.Next()
	}
}

// CurrentUser retrieves the authenticated user attached by Auth.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, ok := c.Get(CtxUserKey)
	if !ok {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}

func bearerToken(header string) (string, bool) {
	if len(header) < 8 || !strings.EqualFold(header[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}
