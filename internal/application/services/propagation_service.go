package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/concurrency"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/logging"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/performance"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/tenant"
)

// PropagationService executes the explicit identification path: one atomic
// transaction that writes the identity document onto the matched visitor, all
// related visitors, and all their historical events.
type PropagationService struct {
	sessions    *SessionService
	verifier    identity.Verifier
	locks       *concurrency.LockRegistry
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewPropagationService creates a new propagation service.
func NewPropagationService(sessions *SessionService, verifier identity.Verifier, locks *concurrency.LockRegistry, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *PropagationService {
	return &PropagationService{
		sessions:    sessions,
		verifier:    verifier,
		locks:       locks,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// Identify stitches the supplied identity document across the visitor cluster
// bound to the session. Steps commit or roll back as one unit; a failure at
// any step leaves no observable partial propagation.
//
// Oracle verification, when a proof token is supplied, completes before any
// lock is acquired; the lock is never held across an oracle round-trip.
func (s *PropagationService) Identify(ctx context.Context, tenantCtx *tenant.Context, sessionID string, doc identity.Document, proofToken string) (*identity.PropagationResult, error) {
	marker := s.perfTracker.StartOperation("identity:propagate", tenantCtx.TenantID)
	defer s.perfTracker.CompleteOperation(marker)

	session, err := s.sessions.LoadSession(ctx, tenantCtx, sessionID)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	if proofToken != "" {
		verified, err := s.verifier.VerifyAndFetch(ctx, proofToken)
		if err != nil {
			marker.SetError(err)
			return nil, err
		}
		if verified.VisitorID != session.VisitorID {
			err := fmt.Errorf("%w: proof belongs to a different visitor", identity.ErrVerificationFailed)
			marker.SetError(err)
			return nil, err
		}
	}

	result, touched, err := s.propagate(ctx, tenantCtx, session, doc)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	// Synchronous invalidation for every visitor the transaction touched.
	// Waiting for TTL expiry here would serve stale identities.
	tenantCtx.CacheManager.InvalidateVisitors(tenantCtx.TenantID, touched)

	marker.AddMetadata("updatedVisitors", result.UpdatedVisitors)
	marker.AddMetadata("updatedEvents", result.UpdatedEvents)

	s.logger.Propagation().Info("Identity propagated",
		"tenantId", tenantCtx.TenantID, "visitorId", result.VisitorID,
		"updatedVisitors", result.UpdatedVisitors, "updatedEvents", result.UpdatedEvents)
	return result, nil
}

func (s *PropagationService) propagate(ctx context.Context, tenantCtx *tenant.Context, session *identity.Session, doc identity.Document) (*identity.PropagationResult, []string, error) {
	// The cluster is keyed by the primary visitor's current correlation key,
	// which another propagation may move between our read and our lock. Read,
	// lock, then re-check; retry on movement.
	for attempt := 0; attempt < 3; attempt++ {
		primary, err := tenantCtx.VisitorRepo().FindByID(ctx, session.VisitorID)
		if err != nil {
			return nil, nil, err
		}
		if primary == nil {
			return nil, nil, fmt.Errorf("%w: visitor %s missing", identity.ErrSessionNotFound, session.VisitorID)
		}

		lockKey := concurrency.Key(tenantCtx.TenantID, primary.CorrelationKey())
		release, err := s.locks.Acquire(ctx, lockKey)
		if err != nil {
			return nil, nil, err
		}

		current, err := tenantCtx.VisitorRepo().FindByID(ctx, session.VisitorID)
		if err != nil {
			release()
			return nil, nil, err
		}
		if current == nil {
			release()
			return nil, nil, fmt.Errorf("%w: visitor %s missing", identity.ErrSessionNotFound, session.VisitorID)
		}
		if current.CorrelationKey() != primary.CorrelationKey() {
			release()
			continue
		}

		result, touched, err := s.propagateLocked(ctx, tenantCtx, session, current, doc)
		release()
		return result, touched, err
	}
	return nil, nil, fmt.Errorf("%w: cluster moved during identification", identity.ErrLockContention)
}

// propagateLocked runs steps 1-5 inside a single transaction while the
// cluster lock is held.
func (s *PropagationService) propagateLocked(ctx context.Context, tenantCtx *tenant.Context, session *identity.Session, primary *identity.Visitor, doc identity.Document) (*identity.PropagationResult, []string, error) {
	docJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to serialize identity document: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := tenantCtx.Database.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", identity.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	// Step 1: write the document onto the primary visitor. Identification is
	// the only path allowed to replace an existing identity document.
	if _, err := tx.ExecContext(ctx,
		`UPDATE identity_mappings SET identity = ?, updated_at = ? WHERE visitor_id = ?`,
		string(docJSON), now, primary.VisitorID); err != nil {
		return nil, nil, fmt.Errorf("%w: primary identity write failed: %v", identity.ErrStoreUnavailable, err)
	}

	// Step 2: related set = same network address AND browser signature. The
	// signature requirement prevents over-merging people behind one address.
	relatedIDs, err := s.relatedVisitors(ctx, tx, primary)
	if err != nil {
		return nil, nil, err
	}

	// Step 3: write the same document onto every related visitor.
	if len(relatedIDs) > 0 {
		placeholders := strings.Repeat("?,", len(relatedIDs)-1) + "?"
		args := []any{string(docJSON), now}
		for _, id := range relatedIDs {
			args = append(args, id)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE identity_mappings SET identity = ?, updated_at = ? WHERE visitor_id IN (`+placeholders+`)`,
			args...); err != nil {
			return nil, nil, fmt.Errorf("%w: related identity write failed: %v", identity.ErrStoreUnavailable, err)
		}
	}

	// Step 4: rewrite the identity snapshot on every historical event of the
	// cluster. Event facts stay untouched.
	touched := append([]string{primary.VisitorID}, relatedIDs...)
	placeholders := strings.Repeat("?,", len(touched)-1) + "?"
	args := []any{string(docJSON)}
	for _, id := range touched {
		args = append(args, id)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE events SET identity = ? WHERE visitor_id IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: event snapshot rewrite failed: %v", identity.ErrStoreUnavailable, err)
	}
	updatedEvents, _ := res.RowsAffected()

	// Step 5: append the identify event carrying the document as both its
	// properties and its identity snapshot.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (event_id, session_id, visitor_id, event_name,
			properties, identity, confidence, identification_method,
			country, region, city, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), session.SessionID, primary.VisitorID, identity.EventNameIdentify,
		string(docJSON), string(docJSON), primary.Confidence, primary.Method,
		primary.Geo.Country, primary.Geo.Region, primary.Geo.City, now); err != nil {
		return nil, nil, fmt.Errorf("%w: identify event append failed: %v", identity.ErrStoreUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("%w: commit failed: %v", identity.ErrStoreUnavailable, err)
	}

	return &identity.PropagationResult{
		VisitorID:       primary.VisitorID,
		UpdatedVisitors: len(relatedIDs),
		UpdatedEvents:   int(updatedEvents),
	}, touched, nil
}

func (s *PropagationService) relatedVisitors(ctx context.Context, tx *sql.Tx, primary *identity.Visitor) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT visitor_id FROM identity_mappings
		WHERE ip_address = ? AND browser = ? AND os = ? AND visitor_id <> ?`,
		primary.IPAddress, primary.Browser, primary.OS, primary.VisitorID)
	if err != nil {
		return nil, fmt.Errorf("%w: related lookup failed: %v", identity.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %v", identity.ErrStoreUnavailable, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", identity.ErrStoreUnavailable, err)
	}
	return ids, nil
}
