// Package middleware provides HTTP middleware for the presentation layer.
package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/performance"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/tenant"
)

// TenantMiddleware extracts the tenant from the X-Tenant-ID header and
// attaches a fully initialized tenant context to the request. Unknown and
// malformed tenant IDs are rejected here; handlers never see them.
func TenantMiddleware(tenantManager *tenant.Manager, perfTracker *performance.Tracker) gin.HandlerFunc {
	logger := tenantManager.GetLogger()

	return func(c *gin.Context) {
		start := time.Now()
		marker := perfTracker.StartOperation("middleware:tenant", "unknown")
		defer marker.Complete()

		tenantID := c.GetHeader("X-Tenant-ID")
		marker.AddMetadata("path", c.Request.URL.Path)
		marker.AddMetadata("method", c.Request.Method)
		if tenantID != "" {
			marker.TenantID = tenantID
		}

		if tenantID == "" {
			logger.Tenant().Warn("Missing X-Tenant-ID header", "path", c.Request.URL.Path)
			marker.SetSuccess(false)
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-Tenant-ID header is required"})
			c.Abort()
			return
		}

		tenantCtx, err := tenantManager.GetContext(tenantID)
		if err != nil {
			logger.Tenant().Warn("Tenant resolution rejected", "tenantId", tenantID, "error", err.Error())
			marker.SetSuccess(false)
			marker.SetError(err)
			if errors.Is(err, identity.ErrInvalidTenant) {
				c.JSON(http.StatusForbidden, gin.H{"error": "unknown or invalid tenant"})
			} else {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tenant store unavailable"})
			}
			c.Abort()
			return
		}

		logger.Tenant().Debug("Tenant context resolved",
			"tenantId", tenantCtx.TenantID,
			"duration", time.Since(start),
			"database", tenantCtx.GetDatabaseInfo(),
		)
		marker.SetSuccess(true)

		c.Set("tenant", tenantCtx)
		c.Next()
	}
}

// GetTenantContext retrieves the tenant context from gin context.
func GetTenantContext(c *gin.Context) (*tenant.Context, bool) {
	tenantCtx, exists := c.Get("tenant")
	if !exists {
		return nil, false
	}

	ctx, ok := tenantCtx.(*tenant.Context)
	return ctx, ok
}
