package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/propgate/propgate/internal/config"
)

const (
	HeaderGatewayKey = "X-Gateway-Key"
)

// AuthMiddleware checks the shared gateway key. Snapshot producers and
// dashboards use the same key; per-account producer keys are validated at the
// handler where the account is known.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg == nil || !cfg.Auth.RequireAPIKey {
			c.Next()
			return
		}

		apiKey := c.GetHeader(HeaderGatewayKey)
		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			c.Abort()
			return
		}
		if apiKey != cfg.Auth.APIKey && apiKey != cfg.Auth.AdminKey {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}

		c.Next()
	}
}
