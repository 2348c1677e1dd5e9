package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/security"
	"github.com/vigneshICustomer/finger-print-bn/pkg/config"
)

// AdminAuthMiddleware guards provisioning endpoints with the operator key.
// The key is checked against a bcrypt hash from the environment; with no hash
// configured, provisioning is disabled outright.
func AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.AdminKeyHash == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": "tenant provisioning is disabled"})
			c.Abort()
			return
		}

		key := c.GetHeader("X-Admin-Key")
		if key == "" || !security.VerifyKey(key, config.AdminKeyHash) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin key"})
			c.Abort()
			return
		}

		c.Next()
	}
}
