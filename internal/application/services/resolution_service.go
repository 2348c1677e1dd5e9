// Package services provides the application services orchestrating identity
// resolution, propagation, sessions, and event tracking.
package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/concurrency"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/logging"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/performance"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/security"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/tenant"
)

// ResolveRequest carries one visitor signature into the matcher.
type ResolveRequest struct {
	VisitorID string       `json:"visitorId"`
	IPAddress string       `json:"ipAddress"`
	Browser   string       `json:"browser"`
	OS        string       `json:"os"`
	Geo       identity.Geo `json:"geo"`
}

// ResolutionService decides whether an incoming signature belongs to a
// previously seen person, and with what confidence.
type ResolutionService struct {
	locks       *concurrency.LockRegistry
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewResolutionService creates a new resolution service.
func NewResolutionService(locks *concurrency.LockRegistry, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *ResolutionService {
	return &ResolutionService{
		locks:       locks,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// Resolve runs the tiered matching policy, in strict priority order with each
// tier short-circuiting the next:
//
//  1. exact visitor id match -> fingerprint, confidence >= 0.8
//  2. network address + browser signature -> ip_browser, confidence >= 0.6
//  3. network address only -> ip, confidence >= 0.4
//  4. no match -> new_visitor, confidence 1.0
//
// The whole read-then-write span runs under the cluster locks for both the
// signature's correlation key and, for a returning visitor, the cluster the
// store currently files that visitor under. A returning visitor may have
// moved networks; identification serializes on the stored cluster, so
// resolution must too or the two paths race on the same visitor id.
func (s *ResolutionService) Resolve(ctx context.Context, tenantCtx *tenant.Context, req *ResolveRequest) (*identity.Match, error) {
	marker := s.perfTracker.StartOperation("identity:resolve", tenantCtx.TenantID)
	defer s.perfTracker.CompleteOperation(marker)

	match, err := s.resolve(ctx, tenantCtx, req)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	marker.AddMetadata("method", match.Method)
	marker.AddMetadata("confidence", match.Confidence)
	return match, nil
}

func (s *ResolutionService) resolve(ctx context.Context, tenantCtx *tenant.Context, req *ResolveRequest) (*identity.Match, error) {
	reqKey := concurrency.Key(tenantCtx.TenantID, identity.CorrelationKey(req.IPAddress, req.Browser, req.OS))

	// The stored cluster can move between the unlocked peek and the
	// acquisition. Read, lock, re-check; retry on movement.
	for attempt := 0; attempt < 3; attempt++ {
		var storedKey string
		if req.VisitorID != "" {
			existing, err := tenantCtx.VisitorRepo().FindByID(ctx, req.VisitorID)
			if err != nil {
				return nil, fmt.Errorf("exact match lookup failed: %w", err)
			}
			if existing != nil {
				storedKey = concurrency.Key(tenantCtx.TenantID, existing.CorrelationKey())
			}
		}

		release, err := s.acquireOrdered(ctx, reqKey, storedKey)
		if err != nil {
			return nil, err
		}

		if req.VisitorID == "" {
			match, err := s.resolveLocked(ctx, tenantCtx, req, nil)
			release()
			return match, err
		}

		current, err := tenantCtx.VisitorRepo().FindByID(ctx, req.VisitorID)
		if err != nil {
			release()
			return nil, fmt.Errorf("exact match lookup failed: %w", err)
		}
		var currentKey string
		if current != nil {
			currentKey = concurrency.Key(tenantCtx.TenantID, current.CorrelationKey())
		}
		if currentKey != storedKey {
			release()
			continue
		}

		match, err := s.resolveLocked(ctx, tenantCtx, req, current)
		release()
		return match, err
	}
	return nil, fmt.Errorf("%w: cluster moved during resolution", identity.ErrLockContention)
}

// acquireOrdered takes the cluster locks for the given keys in lexical order,
// skipping empties and duplicates, so concurrent resolutions whose clusters
// cross cannot deadlock on each other.
func (s *ResolutionService) acquireOrdered(ctx context.Context, keys ...string) (func(), error) {
	unique := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		duplicate := false
		for _, seen := range unique {
			if seen == key {
				duplicate = true
				break
			}
		}
		if !duplicate {
			unique = append(unique, key)
		}
	}
	sort.Strings(unique)

	releases := make([]func(), 0, len(unique))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, key := range unique {
		release, err := s.locks.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

func (s *ResolutionService) resolveLocked(ctx context.Context, tenantCtx *tenant.Context, req *ResolveRequest, existing *identity.Visitor) (*identity.Match, error) {
	visitorRepo := tenantCtx.VisitorRepo()
	now := time.Now().UTC()

	// Tier 1: exact visitor match
	if existing != nil {
		confidence := matchConfidence(existing, identity.ConfidenceFingerprint)

		updated := *existing
		updated.IPAddress = req.IPAddress
		updated.Browser = req.Browser
		updated.OS = req.OS
		updated.Confidence = confidence
		updated.Method = identity.MethodFingerprint
		updated.LastSeen = now
		updated.Geo = req.Geo

		// Upsert touches mutable fields only; a bound identity document
		// survives this path untouched.
		if err := visitorRepo.Upsert(ctx, &updated); err != nil {
			return nil, fmt.Errorf("exact match upsert failed: %w", err)
		}
		updated.Identity = existing.Identity

		tenantCtx.CacheManager.SetVisitor(tenantCtx.TenantID, &updated)

		s.logger.Identity().Info("Visitor resolved",
			"tenantId", tenantCtx.TenantID, "visitorId", req.VisitorID,
			"method", identity.MethodFingerprint, "confidence", confidence)

		return &identity.Match{
			Visitor:    &updated,
			Method:     identity.MethodFingerprint,
			Confidence: confidence,
		}, nil
	}

	// Tiers 2 and 3 share one indexed scan, most recently seen first.
	candidates, err := visitorRepo.FindByIPAddress(ctx, req.IPAddress)
	if err != nil {
		return nil, fmt.Errorf("correlation lookup failed: %w", err)
	}

	// Tier 2: network + browser-signature correlation
	for _, candidate := range candidates {
		if candidate.Browser == req.Browser && candidate.OS == req.OS {
			return s.correlatedMatch(ctx, tenantCtx, req, candidate, identity.MethodIPBrowser, identity.ConfidenceIPBrowser, now)
		}
	}

	// Tier 3: network-only fallback
	if len(candidates) > 0 {
		return s.correlatedMatch(ctx, tenantCtx, req, candidates[0], identity.MethodIP, identity.ConfidenceIP, now)
	}

	// Tier 4: new visitor. A fresh, unambiguous fingerprint is treated as
	// maximally trustworthy evidence, distinct from match confidence.
	visitorID := req.VisitorID
	if visitorID == "" {
		visitorID = security.GenerateULID()
	}
	visitor := &identity.Visitor{
		VisitorID:  visitorID,
		IPAddress:  req.IPAddress,
		Browser:    req.Browser,
		OS:         req.OS,
		Confidence: identity.ConfidenceNewVisitor,
		Method:     identity.MethodNewVisitor,
		FirstSeen:  now,
		LastSeen:   now,
		Geo:        req.Geo,
	}
	if err := visitorRepo.Create(ctx, visitor); err != nil {
		return nil, fmt.Errorf("new visitor insert failed: %w", err)
	}

	tenantCtx.CacheManager.SetVisitor(tenantCtx.TenantID, visitor)

	s.logger.Identity().Info("New visitor declared",
		"tenantId", tenantCtx.TenantID, "visitorId", visitorID)

	return &identity.Match{
		Visitor:    visitor,
		Method:     identity.MethodNewVisitor,
		Confidence: identity.ConfidenceNewVisitor,
		NewVisitor: true,
	}, nil
}

// matchConfidence seeds a match decision from a stored row, held to the
// tier's floor. A new_visitor row's 1.0 measures trust in a fresh
// fingerprint, not in a match, and never feeds the max.
func matchConfidence(stored *identity.Visitor, floor float64) float64 {
	if stored.Method == identity.MethodNewVisitor {
		return floor
	}
	return max(stored.Confidence, floor)
}

// correlatedMatch resolves an incoming signature against a correlated
// candidate. The candidate's confidence seeds the decision, but the incoming
// fingerprint keeps its own row: when the caller presented a visitor id we
// have never stored, a row is created for it so later identification can
// stitch the pair through their shared correlation key. The identity document
// is never copied here; only propagation binds documents.
func (s *ResolutionService) correlatedMatch(ctx context.Context, tenantCtx *tenant.Context, req *ResolveRequest, candidate *identity.Visitor, method string, floor float64, now time.Time) (*identity.Match, error) {
	confidence := matchConfidence(candidate, floor)

	matched := candidate
	if req.VisitorID != "" && req.VisitorID != candidate.VisitorID {
		visitor := &identity.Visitor{
			VisitorID:  req.VisitorID,
			IPAddress:  req.IPAddress,
			Browser:    req.Browser,
			OS:         req.OS,
			Confidence: confidence,
			Method:     method,
			FirstSeen:  now,
			LastSeen:   now,
			Geo:        req.Geo,
		}
		if err := tenantCtx.VisitorRepo().Create(ctx, visitor); err != nil {
			return nil, fmt.Errorf("correlated visitor insert failed: %w", err)
		}
		matched = visitor
	}

	// Cache only rows filed under the locked cluster. A network-only match
	// can hand back a candidate from another cluster, and identification on
	// that cluster is not serialized with this resolution.
	if matched.CorrelationKey() == identity.CorrelationKey(req.IPAddress, req.Browser, req.OS) {
		tenantCtx.CacheManager.SetVisitor(tenantCtx.TenantID, matched)
	}

	s.logger.Identity().Info("Visitor resolved",
		"tenantId", tenantCtx.TenantID, "visitorId", matched.VisitorID,
		"correlatedWith", candidate.VisitorID, "method", method, "confidence", confidence)

	return &identity.Match{
		Visitor:    matched,
		Method:     method,
		Confidence: confidence,
	}, nil
}

// LookupVisitor returns the current view of a visitor, cache first, falling
// back to the store and repopulating the cache on a miss. Read-only. The
// repopulation is generation-guarded: if an identification invalidates the
// visitor between the store read and the cache write, the write is dropped
// rather than resurrecting the pre-identification row.
func (s *ResolutionService) LookupVisitor(ctx context.Context, tenantCtx *tenant.Context, visitorID string) (*identity.Visitor, error) {
	if visitor, hit := tenantCtx.CacheManager.GetVisitor(tenantCtx.TenantID, visitorID); hit {
		return visitor, nil
	}

	generation := tenantCtx.CacheManager.VisitorGeneration(tenantCtx.TenantID, visitorID)
	visitor, err := tenantCtx.VisitorRepo().FindByID(ctx, visitorID)
	if err != nil {
		return nil, err
	}
	if visitor != nil {
		tenantCtx.CacheManager.SetVisitorIfGeneration(tenantCtx.TenantID, visitor, generation)
	}
	return visitor, nil
}
