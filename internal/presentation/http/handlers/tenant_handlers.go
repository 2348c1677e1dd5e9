package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/logging"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/tenant"
)

// TenantHandlers contains the tenant provisioning HTTP handlers.
type TenantHandlers struct {
	tenantManager *tenant.Manager
	logger        *logging.ChanneledLogger
}

// RegisterTenantRequest is the payload for tenant provisioning.
type RegisterTenantRequest struct {
	TenantID string `json:"tenantId" binding:"required"`
}

// NewTenantHandlers creates tenant handlers with injected dependencies.
func NewTenantHandlers(tenantManager *tenant.Manager, logger *logging.ChanneledLogger) *TenantHandlers {
	return &TenantHandlers{
		tenantManager: tenantManager,
		logger:        logger,
	}
}

// PostRegister handles POST /api/v1/tenants. It allocates a fresh storage
// partition for the tenant and activates it.
func (h *TenantHandlers) PostRegister(c *gin.Context) {
	var req RegisterTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}

	info, err := tenant.RegisterTenant(req.TenantID)
	if err != nil {
		h.logger.Tenant().Warn("Tenant registration rejected", "tenantId", req.TenantID, "error", err.Error())
		if errors.Is(err, identity.ErrInvalidTenant) {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid tenant id"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	// Activate eagerly so the first tracking request pays no partition
	// bootstrap cost.
	if _, err := h.tenantManager.GetContext(info.TenantID); err != nil {
		h.logger.Tenant().Error("Tenant activation failed after registration", "tenantId", info.TenantID, "error", err.Error())
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tenant registered but activation failed"})
		return
	}

	h.logger.Tenant().Info("Tenant registered", "tenantId", info.TenantID)
	c.JSON(http.StatusCreated, gin.H{
		"tenantId":  info.TenantID,
		"status":    info.Status,
		"createdAt": info.CreatedAt,
	})
}
