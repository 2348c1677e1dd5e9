package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/concurrency"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/tenant"
)

// HealthHandlers reports process liveness and operational counters.
type HealthHandlers struct {
	tenantManager *tenant.Manager
	locks         *concurrency.LockRegistry
	startedAt     time.Time
}

// NewHealthHandlers creates health handlers.
func NewHealthHandlers(tenantManager *tenant.Manager, locks *concurrency.LockRegistry) *HealthHandlers {
	return &HealthHandlers{
		tenantManager: tenantManager,
		locks:         locks,
		startedAt:     time.Now(),
	}
}

// GetHealth handles GET /api/v1/health.
func (h *HealthHandlers) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"uptimeSeconds": int(time.Since(h.startedAt).Seconds()),
		"activeTenants": len(h.tenantManager.ActiveTenants()),
		"cachedVisitors": func() int {
			total := 0
			for _, n := range h.tenantManager.CacheManager().GetSummary() {
				total += n
			}
			return total
		}(),
		"activeClusterLocks": h.locks.Size(),
		"connectionPools":    tenant.GetPoolStats(),
	})
}
