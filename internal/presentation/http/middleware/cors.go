package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/vigneshICustomer/finger-print-bn/pkg/config"
)

// CORSMiddleware builds the CORS policy from configuration. The tracking
// snippet runs on customer sites, so allowed origins are env-driven rather
// than hardcoded.
func CORSMiddleware() gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowOrigins: config.AllowedOrigins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			"X-Tenant-ID", "X-Requested-With",
		},
		AllowCredentials: true,
		ExposeHeaders:    []string{"Content-Type"},
	}

	if len(corsConfig.AllowOrigins) == 1 && corsConfig.AllowOrigins[0] == "*" {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}

	return cors.New(corsConfig)
}
