package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/campushq/edu-portal-api/internal/models"
	appErrors "github.com/campushq/edu-portal-api/pkg/errors"
	"github.com/campushq/edu-portal-api/pkg/response"
)

// Self is the pseudo-role permitting a user to act on their own record
// (route parameter "id" matching the token subject).
const Self = "SELF"

// RBAC enforces role-based access control for routes. Must run after Auth.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	allowedRoles := make(map[models.UserRole]struct{})
	for _, a := range allowed {
		if a == Self {
			allowSelf = true
			continue
		}
		allowedRoles[models.UserRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		if allowSelf {
			if targetID := c.Param("id"); targetID != "" && targetID == claims.UserID {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles is a helper that accepts typed roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}
