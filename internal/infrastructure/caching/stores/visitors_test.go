package stores

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/caching/types"
	"github.com/vigneshICustomer/finger-print-bn/pkg/config"
)

func visitor(id string) *identity.Visitor {
	return &identity.Visitor{
		VisitorID:  id,
		IPAddress:  "203.0.113.10",
		Browser:    "Chrome 126",
		OS:         "Linux",
		Confidence: 0.8,
		Method:     identity.MethodFingerprint,
	}
}

func TestSetAndGetVisitor(t *testing.T) {
	store := NewVisitorsStore(nil)
	store.InitializeTenant("t1")

	_, hit := store.GetVisitor("t1", "fp-1")
	assert.False(t, hit)

	store.SetVisitor("t1", visitor("fp-1"))

	got, hit := store.GetVisitor("t1", "fp-1")
	require.True(t, hit)
	assert.Equal(t, "fp-1", got.VisitorID)
}

func TestGetVisitorTenantIsolation(t *testing.T) {
	store := NewVisitorsStore(nil)
	store.InitializeTenant("t1")
	store.InitializeTenant("t2")

	store.SetVisitor("t1", visitor("fp-1"))

	_, hit := store.GetVisitor("t2", "fp-1")
	assert.False(t, hit, "cache entries must not leak across tenants")
}

func TestGetVisitorExpires(t *testing.T) {
	store := NewVisitorsStore(nil)
	store.InitializeTenant("t1")
	store.SetVisitor("t1", visitor("fp-1"))

	// Backdate the entry past the TTL.
	cache, ok := store.GetTenantCache("t1")
	require.True(t, ok)
	cache.Mu.Lock()
	cache.Visitors["fp-1"].CachedAt = time.Now().UTC().Add(-config.VisitorCacheTTL - time.Minute)
	cache.Mu.Unlock()

	_, hit := store.GetVisitor("t1", "fp-1")
	assert.False(t, hit)
}

func TestInvalidateVisitors(t *testing.T) {
	store := NewVisitorsStore(nil)
	store.InitializeTenant("t1")
	for _, id := range []string{"fp-1", "fp-2", "fp-3"} {
		store.SetVisitor("t1", visitor(id))
	}

	store.InvalidateVisitors("t1", []string{"fp-1", "fp-2"})

	_, hit := store.GetVisitor("t1", "fp-1")
	assert.False(t, hit)
	_, hit = store.GetVisitor("t1", "fp-2")
	assert.False(t, hit)
	_, hit = store.GetVisitor("t1", "fp-3")
	assert.True(t, hit, "untouched visitors stay cached")
}

func TestSweepExpired(t *testing.T) {
	store := NewVisitorsStore(nil)
	store.InitializeTenant("t1")
	store.SetVisitor("t1", visitor("fp-live"))
	store.SetVisitor("t1", visitor("fp-stale"))

	cache, ok := store.GetTenantCache("t1")
	require.True(t, ok)
	cache.Mu.Lock()
	cache.Visitors["fp-stale"].CachedAt = time.Now().UTC().Add(-config.VisitorCacheTTL - time.Minute)
	cache.Mu.Unlock()

	removed := store.SweepExpired()
	assert.Equal(t, 1, removed)

	summary := store.GetSummary()
	assert.Equal(t, map[string]int{"t1": 1}, summary)
}

func TestSetVisitorIfGenerationDropsStaleWrite(t *testing.T) {
	store := NewVisitorsStore(nil)
	store.InitializeTenant("t1")

	// An unlocked reader snapshots the generation, reads the store, and an
	// identification invalidates the visitor in between. The write-back must
	// be dropped, or the cache would resurrect the pre-identification row.
	generation := store.VisitorGeneration("t1", "fp-1")
	store.InvalidateVisitors("t1", []string{"fp-1"})

	stored := store.SetVisitorIfGeneration("t1", visitor("fp-1"), generation)
	assert.False(t, stored)
	_, hit := store.GetVisitor("t1", "fp-1")
	assert.False(t, hit)

	// With a fresh snapshot the write-back lands.
	generation = store.VisitorGeneration("t1", "fp-1")
	stored = store.SetVisitorIfGeneration("t1", visitor("fp-1"), generation)
	assert.True(t, stored)
	_, hit = store.GetVisitor("t1", "fp-1")
	assert.True(t, hit)
}

func TestInvalidateVisitorBumpsGeneration(t *testing.T) {
	store := NewVisitorsStore(nil)
	store.InitializeTenant("t1")

	before := store.VisitorGeneration("t1", "fp-1")
	store.InvalidateVisitor("t1", "fp-1")
	assert.Equal(t, before+1, store.VisitorGeneration("t1", "fp-1"))

	store.InvalidateVisitors("t1", []string{"fp-1", "fp-2"})
	assert.Equal(t, before+2, store.VisitorGeneration("t1", "fp-1"))
	assert.Equal(t, uint64(1), store.VisitorGeneration("t1", "fp-2"))
}

func TestVisitorEntryExpired(t *testing.T) {
	entry := &types.VisitorEntry{Visitor: visitor("fp-1"), CachedAt: time.Now().UTC()}
	assert.False(t, entry.Expired(time.Now().UTC(), time.Hour))
	assert.True(t, entry.Expired(time.Now().UTC().Add(2*time.Hour), time.Hour))
}
