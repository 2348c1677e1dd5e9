package services

import (
	"context"
	"fmt"
	"time"

	"github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/logging"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/performance"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/security"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/tenant"
	"github.com/vigneshICustomer/finger-print-bn/pkg/config"
)

// SessionService owns the session registry: sessions snapshot a resolution
// outcome at creation and never re-resolve on later lookups.
type SessionService struct {
	resolver    *ResolutionService
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewSessionService creates a new session service.
func NewSessionService(resolver *ResolutionService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *SessionService {
	return &SessionService{
		resolver:    resolver,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// InitResult is the outcome of a session initialization.
type InitResult struct {
	SessionID  string  `json:"sessionId"`
	VisitorID  string  `json:"visitorId"`
	Method     string  `json:"identificationMethod"`
	Confidence float64 `json:"confidence"`
	NewVisitor bool    `json:"newVisitor"`
	Token      string  `json:"token,omitempty"`
}

// InitSession resolves the incoming signature and binds a fresh session token
// to the resolved visitor.
func (s *SessionService) InitSession(ctx context.Context, tenantCtx *tenant.Context, req *ResolveRequest) (*InitResult, error) {
	marker := s.perfTracker.StartOperation("session:init", tenantCtx.TenantID)
	defer s.perfTracker.CompleteOperation(marker)

	match, err := s.resolver.Resolve(ctx, tenantCtx, req)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	session, err := s.CreateSession(ctx, tenantCtx, match)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	result := &InitResult{
		SessionID:  session.SessionID,
		VisitorID:  match.Visitor.VisitorID,
		Method:     match.Method,
		Confidence: match.Confidence,
		NewVisitor: match.NewVisitor,
	}

	if config.JWTSecret != "" {
		token, err := security.GenerateVisitorToken(match.Visitor.VisitorID, session.SessionID, tenantCtx.TenantID, config.JWTSecret)
		if err != nil {
			s.logger.Session().Error("Visitor token generation failed", "error", err.Error(), "tenantId", tenantCtx.TenantID)
		} else {
			result.Token = token
		}
	}

	return result, nil
}

// CreateSession snapshots a resolution outcome under a new opaque session token.
func (s *SessionService) CreateSession(ctx context.Context, tenantCtx *tenant.Context, match *identity.Match) (*identity.Session, error) {
	session := &identity.Session{
		SessionID:  security.GenerateULID(),
		VisitorID:  match.Visitor.VisitorID,
		IPAddress:  match.Visitor.IPAddress,
		Browser:    match.Visitor.Browser,
		OS:         match.Visitor.OS,
		Confidence: match.Confidence,
		Method:     match.Method,
		CreatedAt:  time.Now().UTC(),
	}

	if err := tenantCtx.SessionRepo().Create(ctx, session); err != nil {
		return nil, fmt.Errorf("session creation failed: %w", err)
	}

	s.logger.Session().Info("Session created",
		"tenantId", tenantCtx.TenantID, "sessionId", session.SessionID,
		"visitorId", session.VisitorID, "method", session.Method)
	return session, nil
}

// LoadSession retrieves a session by token, enforcing the validity window.
// Expired sessions are rejected, not deleted.
func (s *SessionService) LoadSession(ctx context.Context, tenantCtx *tenant.Context, sessionID string) (*identity.Session, error) {
	session, err := tenantCtx.SessionRepo().FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, fmt.Errorf("%w: %s", identity.ErrSessionNotFound, sessionID)
	}
	if session.ExpiredAt(time.Now().UTC(), config.SessionTTL) {
		s.logger.Session().Debug("Session expired",
			"tenantId", tenantCtx.TenantID, "sessionId", sessionID, "createdAt", session.CreatedAt)
		return nil, fmt.Errorf("%w: %s", identity.ErrSessionExpired, sessionID)
	}
	return session, nil
}
