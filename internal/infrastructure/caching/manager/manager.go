// Package manager provides centralized cache operations with proper tenant isolation
package manager

import (
	"sync"
	"time"

	"github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/caching/interfaces"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/caching/stores"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/logging"
)

// Interface assertion to ensure Manager implements the cache contract.
var _ interfaces.IdentityCache = (*Manager)(nil)

// Manager provides centralized cache operations with proper tenant isolation
// by delegating to specialized stores.
type Manager struct {
	Mu            sync.RWMutex
	LastAccessed  map[string]time.Time
	visitorsStore *stores.VisitorsStore
	logger        *logging.ChanneledLogger
}

// NewManager creates a cache manager with its backing stores.
func NewManager(logger *logging.ChanneledLogger) *Manager {
	if logger != nil {
		logger.Cache().Info("Initializing cache manager", "stores", []string{"visitors"})
	}

	return &Manager{
		LastAccessed:  make(map[string]time.Time),
		visitorsStore: stores.NewVisitorsStore(logger),
		logger:        logger,
	}
}

// InitializeTenant creates cache structures for a tenant
func (m *Manager) InitializeTenant(tenantID string) {
	m.visitorsStore.InitializeTenant(tenantID)
	m.touch(tenantID)
}

// GetVisitor returns a cached visitor if present and fresh
func (m *Manager) GetVisitor(tenantID, visitorID string) (*identity.Visitor, bool) {
	m.touch(tenantID)
	return m.visitorsStore.GetVisitor(tenantID, visitorID)
}

// SetVisitor stores a visitor in the tenant's cache
func (m *Manager) SetVisitor(tenantID string, visitor *identity.Visitor) {
	m.touch(tenantID)
	m.visitorsStore.SetVisitor(tenantID, visitor)
}

// VisitorGeneration returns the visitor's current invalidation count
func (m *Manager) VisitorGeneration(tenantID, visitorID string) uint64 {
	return m.visitorsStore.VisitorGeneration(tenantID, visitorID)
}

// SetVisitorIfGeneration stores a visitor unless an invalidation landed since
// the generation was snapshotted
func (m *Manager) SetVisitorIfGeneration(tenantID string, visitor *identity.Visitor, generation uint64) bool {
	m.touch(tenantID)
	return m.visitorsStore.SetVisitorIfGeneration(tenantID, visitor, generation)
}

// InvalidateVisitor removes one visitor from the tenant's cache
func (m *Manager) InvalidateVisitor(tenantID, visitorID string) {
	m.visitorsStore.InvalidateVisitor(tenantID, visitorID)
}

// InvalidateVisitors removes a set of visitors from the tenant's cache
func (m *Manager) InvalidateVisitors(tenantID string, visitorIDs []string) {
	m.visitorsStore.InvalidateVisitors(tenantID, visitorIDs)
}

// SweepExpired drops expired entries across all tenants
func (m *Manager) SweepExpired() int {
	return m.visitorsStore.SweepExpired()
}

// GetSummary reports per-tenant cache sizes
func (m *Manager) GetSummary() map[string]int {
	return m.visitorsStore.GetSummary()
}

func (m *Manager) touch(tenantID string) {
	m.Mu.Lock()
	m.LastAccessed[tenantID] = time.Now().UTC()
	m.Mu.Unlock()
}
