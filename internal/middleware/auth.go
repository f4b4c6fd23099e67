package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pulse/internal/common"
	"pulse/internal/infra/auth"
)

const userIDKey = "userID"

// Auth returns middleware that validates the Bearer JWT and injects the
// current user id into the request context.
func Auth(provider *auth.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			common.Error(c, http.StatusUnauthorized, "missing or invalid authorization header")
			c.Abort()
			return
		}

		claims, err := provider.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			common.Error(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

// CurrentUserID extracts the authenticated user id from the request context.
func CurrentUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
