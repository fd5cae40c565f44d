package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const userIDKey = "userId"

// RequireUser extracts the caller identity from the X-User-Id header.
// Authentication itself happens upstream (the session bootstrap collaborator);
// this middleware only enforces that an identity was supplied.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader("X-User-Id"))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing X-User-Id header"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the caller identity set by RequireUser.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
