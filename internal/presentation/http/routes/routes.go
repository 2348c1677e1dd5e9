// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/vigneshICustomer/finger-print-bn/internal/application/container"
	"github.com/vigneshICustomer/finger-print-bn/internal/presentation/http/handlers"
	"github.com/vigneshICustomer/finger-print-bn/internal/presentation/http/middleware"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	sessionHandlers := handlers.NewSessionHandlers(container.SessionService, container.EventService, container.Logger, container.PerfTracker)
	eventHandlers := handlers.NewEventHandlers(container.EventService, container.Logger, container.PerfTracker)
	identifyHandlers := handlers.NewIdentifyHandlers(container.PropagationService, container.Logger, container.PerfTracker)
	healthHandlers := handlers.NewHealthHandlers(container.TenantManager, container.LockRegistry)
	tenantHandlers := handlers.NewTenantHandlers(container.TenantManager, container.Logger)

	r.GET("/api/v1/health", healthHandlers.GetHealth)

	// Operator-only provisioning, no tenant header involved.
	admin := r.Group("/api/v1")
	admin.Use(middleware.AdminAuthMiddleware())
	{
		admin.POST("/tenants", tenantHandlers.PostRegister)
	}

	// Tracking API, every route runs in a tenant partition.
	api := r.Group("/api/v1")
	api.Use(middleware.TenantMiddleware(container.TenantManager, container.PerfTracker))
	{
		api.POST("/session/init", sessionHandlers.PostInit)
		api.GET("/session/:sessionId/events", sessionHandlers.GetSessionEvents)
		api.POST("/events/track", eventHandlers.PostTrack)
		api.POST("/identify", identifyHandlers.PostIdentify)
	}

	return r
}
