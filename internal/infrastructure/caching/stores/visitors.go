// Package stores provides concrete cache store implementations
package stores

import (
	"sync"
	"time"

	"github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/caching/types"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/logging"
	"github.com/vigneshICustomer/finger-print-bn/pkg/config"
)

// VisitorsStore implements visitor identity caching with tenant isolation
type VisitorsStore struct {
	tenantCaches map[string]*types.TenantVisitorCache
	mu           sync.RWMutex
	logger       *logging.ChanneledLogger
}

// NewVisitorsStore creates a new visitors cache store
func NewVisitorsStore(logger *logging.ChanneledLogger) *VisitorsStore {
	if logger != nil {
		logger.Cache().Info("Initializing visitors cache store")
	}
	return &VisitorsStore{
		tenantCaches: make(map[string]*types.TenantVisitorCache),
		logger:       logger,
	}
}

// InitializeTenant creates cache structures for a tenant
func (vs *VisitorsStore) InitializeTenant(tenantID string) {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if vs.tenantCaches[tenantID] == nil {
		vs.tenantCaches[tenantID] = &types.TenantVisitorCache{
			Visitors:      make(map[string]*types.VisitorEntry),
			Invalidations: make(map[string]uint64),
			LastLoaded:    time.Now().UTC(),
		}
		if vs.logger != nil {
			vs.logger.Cache().Debug("Tenant visitor cache initialized", "tenantId", tenantID)
		}
	}
}

// GetTenantCache safely retrieves a tenant's visitor cache
func (vs *VisitorsStore) GetTenantCache(tenantID string) (*types.TenantVisitorCache, bool) {
	vs.mu.RLock()
	defer vs.mu.RUnlock()
	cache, exists := vs.tenantCaches[tenantID]
	return cache, exists
}

// GetVisitor returns a cached visitor if present and not expired
func (vs *VisitorsStore) GetVisitor(tenantID, visitorID string) (*identity.Visitor, bool) {
	start := time.Now()
	cache, exists := vs.GetTenantCache(tenantID)
	if !exists {
		if vs.logger != nil {
			vs.logger.LogCacheOperation("get_visitor", visitorID, false, time.Since(start), tenantID)
		}
		return nil, false
	}

	cache.Mu.RLock()
	defer cache.Mu.RUnlock()

	entry, found := cache.Visitors[visitorID]
	if !found || entry.Expired(time.Now().UTC(), config.VisitorCacheTTL) {
		if vs.logger != nil {
			vs.logger.LogCacheOperation("get_visitor", visitorID, false, time.Since(start), tenantID)
		}
		return nil, false
	}

	if vs.logger != nil {
		vs.logger.LogCacheOperation("get_visitor", visitorID, true, time.Since(start), tenantID)
	}
	return entry.Visitor, true
}

// SetVisitor stores a visitor in the cache
func (vs *VisitorsStore) SetVisitor(tenantID string, visitor *identity.Visitor) {
	if visitor == nil {
		return
	}
	cache, exists := vs.GetTenantCache(tenantID)
	if !exists {
		vs.InitializeTenant(tenantID)
		cache, _ = vs.GetTenantCache(tenantID)
	}

	cache.Mu.Lock()
	defer cache.Mu.Unlock()

	cache.Visitors[visitor.VisitorID] = &types.VisitorEntry{
		Visitor:  visitor,
		CachedAt: time.Now().UTC(),
	}
	cache.LastLoaded = time.Now().UTC()
}

// VisitorGeneration returns the visitor's current invalidation count, for use
// with SetVisitorIfGeneration.
func (vs *VisitorsStore) VisitorGeneration(tenantID, visitorID string) uint64 {
	cache, exists := vs.GetTenantCache(tenantID)
	if !exists {
		return 0
	}

	cache.Mu.RLock()
	defer cache.Mu.RUnlock()
	return cache.Invalidations[visitorID]
}

// SetVisitorIfGeneration stores a visitor only if no invalidation landed since
// the caller snapshotted the generation. Returns whether the entry was stored.
func (vs *VisitorsStore) SetVisitorIfGeneration(tenantID string, visitor *identity.Visitor, generation uint64) bool {
	if visitor == nil {
		return false
	}
	cache, exists := vs.GetTenantCache(tenantID)
	if !exists {
		vs.InitializeTenant(tenantID)
		cache, _ = vs.GetTenantCache(tenantID)
	}

	cache.Mu.Lock()
	defer cache.Mu.Unlock()

	if cache.Invalidations[visitor.VisitorID] != generation {
		if vs.logger != nil {
			vs.logger.Cache().Debug("Stale visitor repopulation dropped",
				"tenantId", tenantID, "visitorId", visitor.VisitorID)
		}
		return false
	}
	cache.Visitors[visitor.VisitorID] = &types.VisitorEntry{
		Visitor:  visitor,
		CachedAt: time.Now().UTC(),
	}
	cache.LastLoaded = time.Now().UTC()
	return true
}

// InvalidateVisitor removes a visitor from the cache
func (vs *VisitorsStore) InvalidateVisitor(tenantID, visitorID string) {
	cache, exists := vs.GetTenantCache(tenantID)
	if !exists {
		return
	}

	cache.Mu.Lock()
	defer cache.Mu.Unlock()

	delete(cache.Visitors, visitorID)
	cache.Invalidations[visitorID]++
	if vs.logger != nil {
		vs.logger.Cache().Debug("Visitor cache entry invalidated", "tenantId", tenantID, "visitorId", visitorID)
	}
}

// InvalidateVisitors removes a set of visitors from the cache in one pass.
// Called synchronously after a successful propagation for every touched
// visitor; stale post-identification entries are a correctness bug.
func (vs *VisitorsStore) InvalidateVisitors(tenantID string, visitorIDs []string) {
	cache, exists := vs.GetTenantCache(tenantID)
	if !exists {
		return
	}

	cache.Mu.Lock()
	defer cache.Mu.Unlock()

	for _, id := range visitorIDs {
		delete(cache.Visitors, id)
		cache.Invalidations[id]++
	}
	if vs.logger != nil {
		vs.logger.Cache().Debug("Visitor cache entries invalidated", "tenantId", tenantID, "count", len(visitorIDs))
	}
}

// SweepExpired drops expired entries for all tenants and returns the count removed
func (vs *VisitorsStore) SweepExpired() int {
	vs.mu.RLock()
	tenantIDs := make([]string, 0, len(vs.tenantCaches))
	for id := range vs.tenantCaches {
		tenantIDs = append(tenantIDs, id)
	}
	vs.mu.RUnlock()

	now := time.Now().UTC()
	removed := 0
	for _, tenantID := range tenantIDs {
		cache, exists := vs.GetTenantCache(tenantID)
		if !exists {
			continue
		}
		cache.Mu.Lock()
		for id, entry := range cache.Visitors {
			if entry.Expired(now, config.VisitorCacheTTL) {
				delete(cache.Visitors, id)
				removed++
			}
		}
		cache.Mu.Unlock()
	}
	return removed
}

// GetSummary reports cache sizes per tenant
func (vs *VisitorsStore) GetSummary() map[string]int {
	vs.mu.RLock()
	defer vs.mu.RUnlock()

	summary := make(map[string]int, len(vs.tenantCaches))
	for tenantID, cache := range vs.tenantCaches {
		cache.Mu.RLock()
		summary[tenantID] = len(cache.Visitors)
		cache.Mu.RUnlock()
	}
	return summary
}
