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

const eventColumns = `event_id, session_id, visitor_id, event_name, properties,
	identity, confidence, identification_method, country, region, city, created_at`

// SQLEventRepository is the SQL-based implementation of the EventRepository.
// Events are append-only; only the identity snapshot column is rewritten, and
// that happens inside the propagation transaction, not here.
type SQLEventRepository struct {
	db       *database.DB
	logger   *logging.ChanneledLogger
	tenantID string
}

// NewSQLEventRepository creates a new instance of the repository.
func NewSQLEventRepository(db *database.DB, logger *logging.ChanneledLogger, tenantID string) *SQLEventRepository {
	return &SQLEventRepository{
		db:       db,
		logger:   logger,
		tenantID: tenantID,
	}
}

// Create appends a new Event row.
func (r *SQLEventRepository) Create(ctx context.Context, event *domain.Event) error {
	const query = `
		INSERT INTO events (event_id, session_id, visitor_id, event_name,
			properties, identity, confidence, identification_method,
			country, region, city, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	r.logger.Database().Debug("Executing event insert", "eventId", event.EventID, "eventName", event.EventName, "visitorId", event.VisitorID)

	propertiesJSON, err := marshalDocument(event.Properties)
	if err != nil {
		return err
	}
	identityJSON, err := marshalDocument(event.Identity)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		event.EventID,
		event.SessionID,
		event.VisitorID,
		event.EventName,
		propertiesJSON,
		identityJSON,
		event.Confidence,
		event.Method,
		event.Geo.Country,
		event.Geo.Region,
		event.Geo.City,
		formatTime(event.CreatedAt),
	)
	if err != nil {
		r.logger.Database().Error("Event insert failed", "error", err.Error(), "eventId", event.EventID)
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), r.tenantID)
	return nil
}

// FindBySessionID retrieves all events for a session in append order.
func (r *SQLEventRepository) FindBySessionID(ctx context.Context, sessionID string) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM events
		WHERE session_id = ?
		ORDER BY created_at ASC`

	return r.queryEvents(ctx, query, sessionID)
}

// FindByVisitorID retrieves all events for a visitor in append order.
func (r *SQLEventRepository) FindByVisitorID(ctx context.Context, visitorID string) ([]*domain.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM events
		WHERE visitor_id = ?
		ORDER BY created_at ASC`

	return r.queryEvents(ctx, query, visitorID)
}

func (r *SQLEventRepository) queryEvents(ctx context.Context, query string, arg any) ([]*domain.Event, error) {
	start := time.Now()

	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		r.logger.Database().Error("Failed to load events", "error", err.Error())
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), r.tenantID)
	return events, nil
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	var event domain.Event
	var propertiesJSON, identityJSON sql.NullString
	var createdAtStr string

	err := row.Scan(
		&event.EventID,
		&event.SessionID,
		&event.VisitorID,
		&event.EventName,
		&propertiesJSON,
		&identityJSON,
		&event.Confidence,
		&event.Method,
		&event.Geo.Country,
		&event.Geo.Region,
		&event.Geo.City,
		&createdAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if propertiesJSON.Valid && propertiesJSON.String != "" {
		doc, err := unmarshalDocument(propertiesJSON.String)
		if err != nil {
			return nil, err
		}
		event.Properties = doc
	}
	if identityJSON.Valid && identityJSON.String != "" {
		doc, err := unmarshalDocument(identityJSON.String)
		if err != nil {
			return nil, err
		}
		event.Identity = doc
	}

	event.CreatedAt = parseTime(createdAtStr)
	return &event, nil
}
