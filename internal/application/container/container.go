// Package container provides dependency injection for all singleton services
package container

import (
	"github.com/vigneshICustomer/finger-print-bn/internal/application/services"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/caching/manager"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/concurrency"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/logging"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/performance"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/oracle"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/tenant"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Identity services (stateless singletons)
	ResolutionService  *services.ResolutionService
	SessionService     *services.SessionService
	EventService       *services.EventService
	PropagationService *services.PropagationService

	// Infrastructure dependencies
	TenantManager *tenant.Manager
	CacheManager  *manager.Manager
	LockRegistry  *concurrency.LockRegistry
	Logger        *logging.ChanneledLogger
	PerfTracker   *performance.Tracker
}

// NewContainer creates and wires all singleton services
func NewContainer(tenantManager *tenant.Manager, cacheManager *manager.Manager, logger *logging.ChanneledLogger) *Container {
	perfTracker := performance.NewTracker(nil)
	lockRegistry := concurrency.NewLockRegistry(logger)

	resolutionService := services.NewResolutionService(lockRegistry, logger, perfTracker)
	sessionService := services.NewSessionService(resolutionService, logger, perfTracker)
	eventService := services.NewEventService(sessionService, resolutionService, logger, perfTracker)
	propagationService := services.NewPropagationService(
		sessionService, oracle.NewHTTPClient(logger), lockRegistry, logger, perfTracker)

	return &Container{
		ResolutionService:  resolutionService,
		SessionService:     sessionService,
		EventService:       eventService,
		PropagationService: propagationService,

		TenantManager: tenantManager,
		CacheManager:  cacheManager,
		LockRegistry:  lockRegistry,
		Logger:        logger,
		PerfTracker:   perfTracker,
	}
}
