package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campushq/edu-portal-api/internal/models"
	"github.com/campushq/edu-portal-api/internal/service"
	appErrors "github.com/campushq/edu-portal-api/pkg/errors"
	"github.com/campushq/edu-portal-api/pkg/response"
)

const (
	// ContextUserKey is the gin context key storing the token claims.
	ContextUserKey = "currentUser"
	// ContextUserViewKey stores the rehydrated user record for the request.
	ContextUserViewKey = "currentUserView"
)

// Auth protects routes by requiring a valid access token. Verification
// includes a live user lookup, so a token for a deleted account is
// rejected here, before any handler logic runs.
func Auth(authService *service.AuthService, metrics *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			metrics.RecordAuthFailure("missing_token")
			response.Error(c, appErrors.Clone(appErrors.ErrInvalidToken, "No token provided"))
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			metrics.RecordAuthFailure("malformed_header")
			response.Error(c, appErrors.Clone(appErrors.ErrInvalidToken, "Invalid authorization header"))
			c.Abort()
			return
		}

		claims, user, err := authService.VerifyToken(c.Request.Context(), parts[1])
		if err != nil {
			metrics.RecordAuthFailure("invalid_token")
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Set(ContextUserViewKey, user)
		c.Next()
	}
}

// ClaimsFromContext returns the verified claims for the current request.
func ClaimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// UserFromContext returns the rehydrated user view for the current request.
func UserFromContext(c *gin.Context) *models.UserView {
	value, exists := c.Get(ContextUserViewKey)
	if !exists {
		return nil
	}
	user, ok := value.(*models.UserView)
	if !ok {
		return nil
	}
	return user
}
