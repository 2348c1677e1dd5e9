// Package types defines identity cache data structures.
package types

import (
	"sync"
	"time"

	"github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
)

// TenantVisitorCache holds cached visitor identities for a single tenant.
// It is a non-authoritative, time-bounded copy of the store and never a
// write path.
type TenantVisitorCache struct {
	Visitors map[string]*VisitorEntry // visitorId -> entry

	// Invalidations counts explicit invalidations per visitorId. Readers
	// snapshot the count before a store read and write back only if it is
	// unchanged, so a repopulation racing an identification cannot
	// resurrect a pre-identification row. TTL expiry does not count.
	Invalidations map[string]uint64

	// Cache metadata
	LastLoaded time.Time
	Mu         sync.RWMutex // Exported for access
}

// VisitorEntry is one cached visitor row with its cache timestamp.
type VisitorEntry struct {
	Visitor  *identity.Visitor `json:"visitor"`
	CachedAt time.Time         `json:"cachedAt"`
}

// Expired reports whether the entry is past the ttl at time t.
func (e *VisitorEntry) Expired(t time.Time, ttl time.Duration) bool {
	return t.After(e.CachedAt.Add(ttl))
}
