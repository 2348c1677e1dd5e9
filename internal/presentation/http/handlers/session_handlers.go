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

// SessionHandlers contains the session lifecycle HTTP handlers.
type SessionHandlers struct {
	sessionService *services.SessionService
	eventService   *services.EventService
	logger         *logging.ChanneledLogger
	perfTracker    *performance.Tracker
}

// InitRequest is the payload for session initialization.
type InitRequest struct {
	VisitorID string       `json:"visitorId,omitempty"`
	IPAddress string       `json:"ipAddress,omitempty"`
	Browser   string       `json:"browser"`
	OS        string       `json:"os"`
	Geo       identity.Geo `json:"geo,omitempty"`
}

// NewSessionHandlers creates session handlers with injected dependencies.
func NewSessionHandlers(sessionService *services.SessionService, eventService *services.EventService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *SessionHandlers {
	return &SessionHandlers{
		sessionService: sessionService,
		eventService:   eventService,
		logger:         logger,
		perfTracker:    perfTracker,
	}
}

// PostInit handles POST /api/v1/session/init. It resolves the incoming
// signature to a visitor and opens a session bound to it.
func (h *SessionHandlers) PostInit(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	var req InitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Session().Warn("Init request binding failed", "tenantId", tenantCtx.TenantID, "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}

	// Browsers lie about their own address; trust the connection over the
	// payload when the payload is empty.
	if req.IPAddress == "" {
		req.IPAddress = c.ClientIP()
	}

	result, err := h.sessionService.InitSession(c.Request.Context(), tenantCtx, &services.ResolveRequest{
		VisitorID: req.VisitorID,
		IPAddress: req.IPAddress,
		Browser:   req.Browser,
		OS:        req.OS,
		Geo:       req.Geo,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetSessionEvents handles GET /api/v1/session/:sessionId/events.
func (h *SessionHandlers) GetSessionEvents(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	sessionID := c.Param("sessionId")
	events, err := h.eventService.ListEventsForSession(c.Request.Context(), tenantCtx, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	if events == nil {
		events = []*identity.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID, "events": events})
}
