package tenant

import (
	"fmt"
	"sync"

	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/caching/manager"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/logging"
)

// Manager coordinates tenant validation and context creation
type Manager struct {
	cacheManager   *manager.Manager
	contexts       map[string]*Context
	contextMutexes sync.Map // Per-tenant mutexes for fine-grained locking
	globalMutex    sync.RWMutex
	logger         *logging.ChanneledLogger
}

// NewManager creates and initializes a new tenant manager.
func NewManager(logger *logging.ChanneledLogger, cacheManager *manager.Manager) *Manager {
	return &Manager{
		cacheManager: cacheManager,
		contexts:     make(map[string]*Context),
		logger:       logger,
	}
}

// GetContext resolves a tenant identifier to its context, validating the id
// against the allow-list and the registry before any storage is touched.
func (m *Manager) GetContext(tenantID string) (*Context, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	m.globalMutex.RLock()
	if ctx, exists := m.contexts[tenantID]; exists {
		m.globalMutex.RUnlock()
		if ctx.Database != nil && ctx.Database.Conn != nil {
			return ctx, nil
		}
	} else {
		m.globalMutex.RUnlock()
	}

	tenantMutexInterface, _ := m.contextMutexes.LoadOrStore(tenantID, &sync.Mutex{})
	tenantMutex := tenantMutexInterface.(*sync.Mutex)

	tenantMutex.Lock()
	defer tenantMutex.Unlock()

	m.globalMutex.RLock()
	if ctx, exists := m.contexts[tenantID]; exists {
		m.globalMutex.RUnlock()
		if ctx.Database != nil && ctx.Database.Conn != nil {
			return ctx, nil
		}
	} else {
		m.globalMutex.RUnlock()
	}

	return m.createContext(tenantID)
}

// createContext creates a new tenant context
func (m *Manager) createContext(tenantID string) (*Context, error) {
	registry, err := LoadRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant registry: %w", err)
	}

	info, err := registry.Lookup(tenantID)
	if err != nil {
		return nil, err
	}

	db, err := NewDatabase(info)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	m.cacheManager.InitializeTenant(tenantID)

	ctx := &Context{
		TenantID:     tenantID,
		Info:         info,
		Database:     db,
		CacheManager: m.cacheManager,
		Logger:       m.logger,
	}

	m.globalMutex.Lock()
	m.contexts[tenantID] = ctx
	m.globalMutex.Unlock()

	m.logger.Tenant().Info("Tenant context created", "tenantId", tenantID, "database", db.GetConnectionInfo())
	return ctx, nil
}

// PreActivateAllTenants warms contexts for every registered tenant at startup.
func (m *Manager) PreActivateAllTenants() error {
	registry, err := LoadRegistry()
	if err != nil {
		return fmt.Errorf("failed to load tenant registry for pre-activation: %w", err)
	}

	for tenantID := range registry.Tenants {
		if _, err := m.GetContext(tenantID); err != nil {
			m.logger.Tenant().Error("Tenant pre-activation failed", "tenantId", tenantID, "error", err.Error())
			continue
		}
	}
	return nil
}

// CacheManager exposes the shared cache manager.
func (m *Manager) CacheManager() *manager.Manager {
	return m.cacheManager
}

// GetLogger exposes the shared logger.
func (m *Manager) GetLogger() *logging.ChanneledLogger {
	return m.logger
}

// ActiveTenants returns the ids of tenants with a live context.
func (m *Manager) ActiveTenants() []string {
	m.globalMutex.RLock()
	defer m.globalMutex.RUnlock()

	ids := make([]string, 0, len(m.contexts))
	for id := range m.contexts {
		ids = append(ids, id)
	}
	return ids
}
