package identity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/logging"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/persistence/database"
)

// SQLSessionRepository is the SQL-based implementation of the SessionRepository.
// Session rows are immutable after insert; expiry is the caller's concern.
type SQLSessionRepository struct {
	db       *database.DB
	logger   *logging.ChanneledLogger
	tenantID string
}

// NewSQLSessionRepository creates a new instance of the repository.
func NewSQLSessionRepository(db *database.DB, logger *logging.ChanneledLogger, tenantID string) *SQLSessionRepository {
	return &SQLSessionRepository{
		db:       db,
		logger:   logger,
		tenantID: tenantID,
	}
}

// FindByID retrieves a Session by its opaque token.
func (r *SQLSessionRepository) FindByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	const query = `
		SELECT session_id, visitor_id, ip_address, browser, os, confidence,
			identification_method, created_at
		FROM session_mappings
		WHERE session_id = ?`

	start := time.Now()
	r.logger.Database().Debug("Loading session by ID", "sessionId", sessionID, "tenantId", r.tenantID)

	var session domain.Session
	var createdAtStr string
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&session.SessionID,
		&session.VisitorID,
		&session.IPAddress,
		&session.Browser,
		&session.OS,
		&session.Confidence,
		&session.Method,
		&createdAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Database().Debug("Session not found", "sessionId", sessionID)
			return nil, nil
		}
		r.logger.Database().Error("Failed to load session", "error", err.Error(), "sessionId", sessionID)
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	session.CreatedAt = parseTime(createdAtStr)

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), r.tenantID)
	return &session, nil
}

// Create saves a new Session row.
func (r *SQLSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	const query = `
		INSERT INTO session_mappings (session_id, visitor_id, ip_address,
			browser, os, confidence, identification_method, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	r.logger.Database().Debug("Executing session insert", "sessionId", session.SessionID, "visitorId", session.VisitorID)

	_, err := r.db.ExecContext(ctx, query,
		session.SessionID,
		session.VisitorID,
		session.IPAddress,
		session.Browser,
		session.OS,
		session.Confidence,
		session.Method,
		formatTime(session.CreatedAt),
	)
	if err != nil {
		r.logger.Database().Error("Session insert failed", "error", err.Error(), "sessionId", session.SessionID)
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), r.tenantID)
	return nil
}
