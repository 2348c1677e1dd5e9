package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
)

// initAndTrack opens a session for the signature and records one event.
func initAndTrack(t *testing.T, eng *testEngine, visitorID, ip, browser, os, eventName string) string {
	t.Helper()
	ctx := context.Background()

	result, err := eng.sessions.InitSession(ctx, eng.tenantCtx, &ResolveRequest{
		VisitorID: visitorID, IPAddress: ip, Browser: browser, OS: os,
	})
	require.NoError(t, err)

	_, err = eng.events.TrackEvent(ctx, eng.tenantCtx, result.SessionID, eventName, identity.Document{"path": "/pricing"})
	require.NoError(t, err)
	return result.SessionID
}

func TestIdentifyStitchesRelatedVisitors(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	// Same person on two devices behind one address with the same browser
	// signature: two visitor rows, two sessions, anonymous events on each.
	session1 := initAndTrack(t, eng, "fp-1", "203.0.113.10", "Chrome 126", "macOS", "page_view")
	initAndTrack(t, eng, "fp-2", "203.0.113.10", "Chrome 126", "macOS", "add_to_cart")

	doc := identity.Document{"email": "ada@example.com", "plan": "pro"}
	result, err := eng.propagation.Identify(ctx, eng.tenantCtx, session1, doc, "")
	require.NoError(t, err)

	// fp-1 is primary; fp-2 is the one related visitor.
	assert.Equal(t, "fp-1", result.VisitorID)
	assert.Equal(t, 1, result.UpdatedVisitors)
	// Two anonymous events rewritten; the identify event itself is appended
	// after the rewrite and not counted.
	assert.Equal(t, 2, result.UpdatedEvents)

	for _, visitorID := range []string{"fp-1", "fp-2"} {
		visitor, err := eng.tenantCtx.VisitorRepo().FindByID(ctx, visitorID)
		require.NoError(t, err)
		require.NotNil(t, visitor.Identity, "visitor %s must carry the document", visitorID)
		assert.Equal(t, "ada@example.com", visitor.Identity["email"])

		events, err := eng.tenantCtx.EventRepo().FindByVisitorID(ctx, visitorID)
		require.NoError(t, err)
		for _, event := range events {
			require.NotNil(t, event.Identity, "event %s missing identity snapshot", event.EventID)
			assert.Equal(t, "ada@example.com", event.Identity["email"])
		}
	}

	// The identify event lands on the primary's session.
	events, err := eng.tenantCtx.EventRepo().FindBySessionID(ctx, session1)
	require.NoError(t, err)
	require.Len(t, events, 2)
	last := events[len(events)-1]
	assert.Equal(t, identity.EventNameIdentify, last.EventName)
	assert.Equal(t, "ada@example.com", last.Properties["email"])
}

func TestIdentifyLeavesOtherClustersAlone(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	session1 := initAndTrack(t, eng, "fp-1", "203.0.113.10", "Chrome 126", "macOS", "page_view")
	// Same address, different browser signature: not related.
	initAndTrack(t, eng, "fp-other", "203.0.113.10", "Safari 17", "iOS", "page_view")

	_, err := eng.propagation.Identify(ctx, eng.tenantCtx, session1, identity.Document{"email": "ada@example.com"}, "")
	require.NoError(t, err)

	other, err := eng.tenantCtx.VisitorRepo().FindByID(ctx, "fp-other")
	require.NoError(t, err)
	assert.Nil(t, other.Identity, "different browser signature must not be stitched")

	events, err := eng.tenantCtx.EventRepo().FindByVisitorID(ctx, "fp-other")
	require.NoError(t, err)
	for _, event := range events {
		assert.Nil(t, event.Identity)
	}
}

func TestIdentifyOverwritesPreviousDocument(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	session := initAndTrack(t, eng, "fp-1", "203.0.113.10", "Chrome 126", "macOS", "page_view")

	_, err := eng.propagation.Identify(ctx, eng.tenantCtx, session, identity.Document{"email": "old@example.com"}, "")
	require.NoError(t, err)
	_, err = eng.propagation.Identify(ctx, eng.tenantCtx, session, identity.Document{"email": "new@example.com"}, "")
	require.NoError(t, err)

	visitor, err := eng.tenantCtx.VisitorRepo().FindByID(ctx, "fp-1")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", visitor.Identity["email"])

	// Every event snapshot, including the first identify event's, now shows
	// the latest document.
	events, err := eng.tenantCtx.EventRepo().FindByVisitorID(ctx, "fp-1")
	require.NoError(t, err)
	identifyCount := 0
	for _, event := range events {
		assert.Equal(t, "new@example.com", event.Identity["email"])
		if event.EventName == identity.EventNameIdentify {
			identifyCount++
		}
	}
	assert.Equal(t, 2, identifyCount)
}

func TestIdentifyIdempotent(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	session := initAndTrack(t, eng, "fp-1", "203.0.113.10", "Chrome 126", "macOS", "page_view")
	initAndTrack(t, eng, "fp-2", "203.0.113.10", "Chrome 126", "macOS", "page_view")

	doc := identity.Document{"email": "ada@example.com"}
	first, err := eng.propagation.Identify(ctx, eng.tenantCtx, session, doc, "")
	require.NoError(t, err)
	second, err := eng.propagation.Identify(ctx, eng.tenantCtx, session, doc, "")
	require.NoError(t, err)

	assert.Equal(t, first.UpdatedVisitors, second.UpdatedVisitors,
		"repeating the same document must not grow the related set")
	assert.Equal(t, first.VisitorID, second.VisitorID)

	visitor, err := eng.tenantCtx.VisitorRepo().FindByID(ctx, "fp-2")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", visitor.Identity["email"])
}

func TestIdentifyTenantIsolation(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()
	otherTenant := newTestTenantContext(t, eng.tenantCtx.Logger)

	// The same fingerprint and signature in two tenants.
	session := initAndTrack(t, eng, "fp-1", "203.0.113.10", "Chrome 126", "macOS", "page_view")
	otherMatch, err := eng.resolution.Resolve(ctx, otherTenant, &ResolveRequest{
		VisitorID: "fp-1", IPAddress: "203.0.113.10", Browser: "Chrome 126", OS: "macOS",
	})
	require.NoError(t, err)
	assert.True(t, otherMatch.NewVisitor, "a visitor known to one tenant is a stranger to another")

	_, err = eng.propagation.Identify(ctx, eng.tenantCtx, session, identity.Document{"email": "ada@example.com"}, "")
	require.NoError(t, err)

	isolated, err := otherTenant.VisitorRepo().FindByID(ctx, "fp-1")
	require.NoError(t, err)
	require.NotNil(t, isolated)
	assert.Nil(t, isolated.Identity, "propagation must never cross tenant partitions")
}

func TestIdentifyEventsAfterwardCarryDocument(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	session := initAndTrack(t, eng, "fp-1", "203.0.113.10", "Chrome 126", "macOS", "page_view")
	_, err := eng.propagation.Identify(ctx, eng.tenantCtx, session, identity.Document{"email": "ada@example.com"}, "")
	require.NoError(t, err)

	event, err := eng.events.TrackEvent(ctx, eng.tenantCtx, session, "purchase", identity.Document{"sku": "sku-1"})
	require.NoError(t, err)
	require.NotNil(t, event.Identity, "post-identification events must carry the document")
	assert.Equal(t, "ada@example.com", event.Identity["email"])
}

func TestIdentifyUnknownSession(t *testing.T) {
	eng := newTestEngine(t)

	_, err := eng.propagation.Identify(context.Background(), eng.tenantCtx, "no-such-session", identity.Document{"email": "x@example.com"}, "")
	assert.ErrorIs(t, err, identity.ErrSessionNotFound)
}

func TestIdentifyProofVerification(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	session := initAndTrack(t, eng, "fp-1", "203.0.113.10", "Chrome 126", "macOS", "page_view")

	t.Run("oracle rejection aborts before any write", func(t *testing.T) {
		eng.verifier.err = identity.ErrVerificationFailed
		_, err := eng.propagation.Identify(ctx, eng.tenantCtx, session, identity.Document{"email": "x@example.com"}, "bad-proof")
		assert.ErrorIs(t, err, identity.ErrVerificationFailed)

		visitor, err := eng.tenantCtx.VisitorRepo().FindByID(ctx, "fp-1")
		require.NoError(t, err)
		assert.Nil(t, visitor.Identity)
	})

	t.Run("proof for a different visitor is rejected", func(t *testing.T) {
		eng.verifier.err = nil
		eng.verifier.oracle = &identity.OracleIdentity{VisitorID: "fp-someone-else"}
		_, err := eng.propagation.Identify(ctx, eng.tenantCtx, session, identity.Document{"email": "x@example.com"}, "stolen-proof")
		assert.ErrorIs(t, err, identity.ErrVerificationFailed)
	})

	t.Run("matching proof passes", func(t *testing.T) {
		eng.verifier.err = nil
		eng.verifier.oracle = &identity.OracleIdentity{VisitorID: "fp-1"}
		_, err := eng.propagation.Identify(ctx, eng.tenantCtx, session, identity.Document{"email": "ada@example.com"}, "good-proof")
		require.NoError(t, err)
	})

	t.Run("no proof token skips the oracle", func(t *testing.T) {
		before := eng.verifier.calls.Load()
		_, err := eng.propagation.Identify(ctx, eng.tenantCtx, session, identity.Document{"email": "ada@example.com"}, "")
		require.NoError(t, err)
		assert.Equal(t, before, eng.verifier.calls.Load())
	})
}

func TestIdentifyInvalidatesCache(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	session := initAndTrack(t, eng, "fp-1", "203.0.113.10", "Chrome 126", "macOS", "page_view")
	initAndTrack(t, eng, "fp-2", "203.0.113.10", "Chrome 126", "macOS", "page_view")

	// Both visitors are cached by their inits.
	_, hit := eng.tenantCtx.CacheManager.GetVisitor(eng.tenantCtx.TenantID, "fp-2")
	require.True(t, hit)

	_, err := eng.propagation.Identify(ctx, eng.tenantCtx, session, identity.Document{"email": "ada@example.com"}, "")
	require.NoError(t, err)

	_, hit = eng.tenantCtx.CacheManager.GetVisitor(eng.tenantCtx.TenantID, "fp-1")
	assert.False(t, hit, "primary must be invalidated")
	_, hit = eng.tenantCtx.CacheManager.GetVisitor(eng.tenantCtx.TenantID, "fp-2")
	assert.False(t, hit, "related visitors must be invalidated")
}

func TestIdentifyConcurrentSameCluster(t *testing.T) {
	eng := newTestEngine(t)
	ctx := context.Background()

	session1 := initAndTrack(t, eng, "fp-1", "203.0.113.10", "Chrome 126", "macOS", "page_view")
	session2 := initAndTrack(t, eng, "fp-2", "203.0.113.10", "Chrome 126", "macOS", "page_view")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	docs := []identity.Document{
		{"email": "first@example.com"},
		{"email": "second@example.com"},
	}
	sessions := []string{session1, session2}

	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = eng.propagation.Identify(ctx, eng.tenantCtx, sessions[i], docs[i], "")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.True(t, errors.Is(err, identity.ErrLockContention) || err == nil)
		}
	}
	require.GreaterOrEqual(t, succeeded, 1)

	// Whatever interleaving happened, both visitors converge on one document.
	v1, err := eng.tenantCtx.VisitorRepo().FindByID(ctx, "fp-1")
	require.NoError(t, err)
	v2, err := eng.tenantCtx.VisitorRepo().FindByID(ctx, "fp-2")
	require.NoError(t, err)
	require.NotNil(t, v1.Identity)
	require.NotNil(t, v2.Identity)
	assert.Equal(t, v1.Identity["email"], v2.Identity["email"], "cluster must not end up split across documents")
}
