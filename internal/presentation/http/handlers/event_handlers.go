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

// EventHandlers contains the behavioral event HTTP handlers.
type EventHandlers struct {
	eventService *services.EventService
	logger       *logging.ChanneledLogger
	perfTracker  *performance.Tracker
}

// TrackRequest is the payload for event capture.
type TrackRequest struct {
	SessionID  string            `json:"sessionId" binding:"required"`
	EventName  string            `json:"eventName" binding:"required"`
	Properties identity.Document `json:"properties,omitempty"`
}

// NewEventHandlers creates event handlers with injected dependencies.
func NewEventHandlers(eventService *services.EventService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *EventHandlers {
	return &EventHandlers{
		eventService: eventService,
		logger:       logger,
		perfTracker:  perfTracker,
	}
}

// PostTrack handles POST /api/v1/events/track. The stored event carries a
// snapshot of the visitor's identity as known at capture time.
func (h *EventHandlers) PostTrack(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	var req TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Session().Warn("Track request binding failed", "tenantId", tenantCtx.TenantID, "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}

	event, err := h.eventService.TrackEvent(c.Request.Context(), tenantCtx, req.SessionID, req.EventName, req.Properties)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}
