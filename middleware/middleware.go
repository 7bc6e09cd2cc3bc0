package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CronAuth guards the periodic trigger endpoints with a shared
// secret. No configured secret means unauthenticated access
// (local/dev mode).
func CronAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		if c.GetHeader("Authorization") != "Bearer "+secret {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		c.Next()
	}
}
