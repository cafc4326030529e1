package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docintake-backend/internal/shared/auth"
	"docintake-backend/internal/shared/server/respond"
)

const (
	userIDKey   = "userId"
	usernameKey = "username"
)

// Auth validates bearer access tokens and stores identity in context.
// Registration, login, health and metrics stay public.
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/v1/auth/") || path == "/api/v1/health" || path == "/metrics" {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if token == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		claims, err := auth.VerifyToken(token, auth.TokenTypeAccess)
		if err != nil {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
			return
		}

		c.Set(userIDKey, claims.Subject)
		if claims.Username != "" {
			c.Set(usernameKey, claims.Username)
		}
		c.Next()
	}
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) (string, bool) {
	if c == nil {
		return "", false
	}
	val, _ := c.Get(userIDKey)
	id, ok := val.(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// UsernameFromContext fetches the username set by the auth middleware.
func UsernameFromContext(c *gin.Context) (string, bool) {
	if c == nil {
		return "", false
	}
	val, _ := c.Get(usernameKey)
	name, ok := val.(string)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}
