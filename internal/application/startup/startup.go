// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vigneshICustomer/finger-print-bn/internal/application/container"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/caching/cleanup"
	cachemanager "github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/caching/manager"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/logging"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/tenant"
	"github.com/vigneshICustomer/finger-print-bn/internal/presentation/http/server"
	"github.com/vigneshICustomer/finger-print-bn/pkg/config"
)

// Initialize performs the complete multi-tenant startup sequence
func Initialize() error {
	setupGinMode()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	loggerConfig := logging.DefaultLoggerConfig()
	if config.LogVerbose {
		loggerConfig.DefaultLevel = slog.LevelDebug
	}
	logger, err := logging.NewChanneledLogger(loggerConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logger.Close()

	logger.Startup().Info("Initializing identity engine")

	// Step 1: tenant registry. A fresh install gets a default tenant so the
	// service is usable out of the box.
	registry, err := tenant.LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load tenant registry: %w", err)
	}
	if len(registry.Tenants) == 0 {
		logger.Startup().Info("Empty tenant registry, registering default tenant")
		if _, err := tenant.RegisterTenant("default"); err != nil {
			return fmt.Errorf("failed to register default tenant: %w", err)
		}
		registry, err = tenant.LoadRegistry()
		if err != nil {
			return fmt.Errorf("failed to reload tenant registry: %w", err)
		}
	}
	logger.Startup().Info("Tenant registry loaded", "tenants", len(registry.Tenants))

	// Step 2: cache and tenant managers.
	cacheManager := cachemanager.NewManager(logger)
	tenantManager := tenant.NewManager(logger, cacheManager)

	// Step 3: pre-activate every registered tenant so the first request pays
	// no partition bootstrap cost.
	if err := tenantManager.PreActivateAllTenants(); err != nil {
		return fmt.Errorf("tenant pre-activation failed: %w", err)
	}
	logger.Startup().Info("Tenant pre-activation complete",
		"activeTenants", len(tenantManager.ActiveTenants()))

	// Step 4: dependency injection container with singleton services.
	appContainer := container.NewContainer(tenantManager, cacheManager, logger)
	logger.Startup().Info("Service container initialized")

	// Step 5: background workers.
	cleanupWorker := cleanup.NewWorker(cacheManager, logger)
	cleanupWorker.Start()
	go poolCleanupLoop(ctx, logger)

	// Step 6: HTTP server.
	port := config.Port
	httpServer := server.New(port, appContainer)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	logger.Startup().Info("Startup complete",
		"totalDuration", time.Since(start),
		"port", port)

	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown")

	shutdownStart := time.Now()
	cancelBackgroundTasks()
	cleanupWorker.Stop()
	appContainer.LockRegistry.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	}

	logger.Shutdown().Info("Shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))
	return nil
}

// poolCleanupLoop periodically evicts idle per-tenant database connections.
func poolCleanupLoop(ctx context.Context, logger *logging.ChanneledLogger) {
	ticker := time.NewTicker(config.DBPoolCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := tenant.CleanupStaleConnections(); evicted > 0 {
				logger.Database().Info("Evicted stale tenant connections", "count", evicted)
			}
		}
	}
}

func setupGinMode() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}
}
