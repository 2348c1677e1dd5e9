package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/logging"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/performance"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/tenant"
)

// EventService appends tracked events, stamping each with the current
// best-known identity of the session's visitor.
type EventService struct {
	sessions    *SessionService
	resolver    *ResolutionService
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewEventService creates a new event service.
func NewEventService(sessions *SessionService, resolver *ResolutionService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *EventService {
	return &EventService{
		sessions:    sessions,
		resolver:    resolver,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// TrackEvent validates the session, re-consults the store for the visitor's
// current identity, and appends the event. An expired or unknown session
// persists nothing.
func (s *EventService) TrackEvent(ctx context.Context, tenantCtx *tenant.Context, sessionID, eventName string, properties identity.Document) (*identity.Event, error) {
	marker := s.perfTracker.StartOperation("event:track", tenantCtx.TenantID)
	defer s.perfTracker.CompleteOperation(marker)

	session, err := s.sessions.LoadSession(ctx, tenantCtx, sessionID)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	visitor, err := s.resolver.LookupVisitor(ctx, tenantCtx, session.VisitorID)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}
	if visitor == nil {
		// The session outlived its visitor row; stamp from the session snapshot.
		visitor = &identity.Visitor{
			VisitorID:  session.VisitorID,
			IPAddress:  session.IPAddress,
			Browser:    session.Browser,
			OS:         session.OS,
			Confidence: session.Confidence,
			Method:     session.Method,
		}
	}

	event := &identity.Event{
		EventID:    uuid.NewString(),
		SessionID:  session.SessionID,
		VisitorID:  session.VisitorID,
		EventName:  eventName,
		Properties: properties,
		Identity:   visitor.Identity,
		Confidence: visitor.Confidence,
		Method:     visitor.Method,
		Geo:        visitor.Geo,
		CreatedAt:  time.Now().UTC(),
	}

	if err := tenantCtx.EventRepo().Create(ctx, event); err != nil {
		marker.SetError(err)
		return nil, fmt.Errorf("event append failed: %w", err)
	}

	s.logger.Identity().Debug("Event tracked",
		"tenantId", tenantCtx.TenantID, "sessionId", sessionID,
		"eventName", eventName, "visitorId", session.VisitorID)
	return event, nil
}

// ListEventsForSession returns the session's events in append order. The
// session must still be valid.
func (s *EventService) ListEventsForSession(ctx context.Context, tenantCtx *tenant.Context, sessionID string) ([]*identity.Event, error) {
	session, err := s.sessions.LoadSession(ctx, tenantCtx, sessionID)
	if err != nil {
		return nil, err
	}
	return tenantCtx.EventRepo().FindBySessionID(ctx, session.SessionID)
}
