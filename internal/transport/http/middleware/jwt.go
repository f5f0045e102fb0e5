package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"campusrag/internal/pkg/jwtutil"
	"campusrag/internal/transport/http/response"
)

const (
	ContextUserIDKey = "user_id"
	ContextRoleKey   = "role"

	// AuthCookieName is the cookie the web client stores its token in.
	AuthCookieName = "auth-token"
)

func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.Error(c, 401, response.CodeUnauthorized, "Non authentifié")
			c.Abort()
			return
		}

		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			response.Error(c, 401, response.CodeUnauthorized, "Non authentifié")
			c.Abort()
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextRoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole must run after AuthJWT.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRoleKey) != role {
			response.Error(c, 403, response.CodeForbidden, "Admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader != "" {
		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			return "", false
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
		return token, token != ""
	}

	cookie, err := c.Cookie(AuthCookieName)
	if err != nil || cookie == "" {
		return "", false
	}
	return cookie, true
}
