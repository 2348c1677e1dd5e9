package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vigneshICustomer/finger-print-bn/internal/application/services"
	"github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/logging"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/performance"
	"github.com/vigneshICustomer/finger-print-bn/internal/presentation/http/middleware"
)

// IdentifyHandlers contains the explicit identification HTTP handler.
type IdentifyHandlers struct {
	propagationService *services.PropagationService
	logger             *logging.ChanneledLogger
	perfTracker        *performance.Tracker
}

// IdentifyRequest is the payload for explicit identification.
type IdentifyRequest struct {
	SessionID  string            `json:"sessionId" binding:"required"`
	Identity   identity.Document `json:"identity" binding:"required"`
	ProofToken string            `json:"proofToken,omitempty"`
}

// NewIdentifyHandlers creates identify handlers with injected dependencies.
func NewIdentifyHandlers(propagationService *services.PropagationService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *IdentifyHandlers {
	return &IdentifyHandlers{
		propagationService: propagationService,
		logger:             logger,
		perfTracker:        perfTracker,
	}
}

// PostIdentify handles POST /api/v1/identify. The identity document is
// propagated atomically across the visitor cluster and its event history.
func (h *IdentifyHandlers) PostIdentify(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	var req IdentifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Propagation().Warn("Identify request binding failed", "tenantId", tenantCtx.TenantID, "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}

	result, err := h.propagationService.Identify(c.Request.Context(), tenantCtx, req.SessionID, req.Identity, req.ProofToken)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
