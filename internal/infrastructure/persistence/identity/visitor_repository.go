// Package identity provides the concrete SQL-based implementations of
// the identity domain repositories (Visitor, Session, Event).
package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/logging"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/persistence/database"
)

const visitorColumns = `visitor_id, ip_address, browser, os, confidence,
	identification_method, first_seen, last_seen, country, region, city,
	asn, asn_org, identity, created_at, updated_at`

// SQLVisitorRepository is the SQL-based implementation of the VisitorRepository.
type SQLVisitorRepository struct {
	db       *database.DB
	logger   *logging.ChanneledLogger
	tenantID string
}

// NewSQLVisitorRepository creates a new instance of the repository.
func NewSQLVisitorRepository(db *database.DB, logger *logging.ChanneledLogger, tenantID string) *SQLVisitorRepository {
	return &SQLVisitorRepository{
		db:       db,
		logger:   logger,
		tenantID: tenantID,
	}
}

// FindByID retrieves a Visitor by its fingerprint identifier.
func (r *SQLVisitorRepository) FindByID(ctx context.Context, visitorID string) (*domain.Visitor, error) {
	query := `SELECT ` + visitorColumns + ` FROM identity_mappings WHERE visitor_id = ?`

	start := time.Now()
	r.logger.Database().Debug("Loading visitor by ID", "visitorId", visitorID, "tenantId", r.tenantID)

	row := r.db.QueryRowContext(ctx, query, visitorID)
	visitor, err := scanVisitor(row)
	if err != nil {
		r.logger.Database().Error("Failed to load visitor by ID", "error", err.Error(), "visitorId", visitorID)
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), r.tenantID)
	return visitor, nil
}

// FindByIPAddress retrieves all Visitors sharing a network address, most
// recently seen first.
func (r *SQLVisitorRepository) FindByIPAddress(ctx context.Context, ipAddress string) ([]*domain.Visitor, error) {
	query := `SELECT ` + visitorColumns + `
		FROM identity_mappings
		WHERE ip_address = ?
		ORDER BY last_seen DESC`

	start := time.Now()
	r.logger.Database().Debug("Loading visitors by IP", "ipAddress", ipAddress, "tenantId", r.tenantID)

	rows, err := r.db.QueryContext(ctx, query, ipAddress)
	if err != nil {
		r.logger.Database().Error("Failed to load visitors by IP", "error", err.Error(), "ipAddress", ipAddress)
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var visitors []*domain.Visitor
	for rows.Next() {
		visitor, err := scanVisitor(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		visitors = append(visitors, visitor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), r.tenantID)
	return visitors, nil
}

// Create saves a new Visitor row.
func (r *SQLVisitorRepository) Create(ctx context.Context, visitor *domain.Visitor) error {
	const query = `
		INSERT INTO identity_mappings (visitor_id, ip_address, browser, os,
			confidence, identification_method, first_seen, last_seen,
			country, region, city, asn, asn_org, identity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	start := time.Now()
	r.logger.Database().Debug("Executing visitor insert", "visitorId", visitor.VisitorID, "tenantId", r.tenantID)

	identityJSON, err := marshalDocument(visitor.Identity)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, query,
		visitor.VisitorID,
		visitor.IPAddress,
		visitor.Browser,
		visitor.OS,
		visitor.Confidence,
		visitor.Method,
		formatTime(visitor.FirstSeen),
		formatTime(visitor.LastSeen),
		visitor.Geo.Country,
		visitor.Geo.Region,
		visitor.Geo.City,
		visitor.Geo.ASN,
		visitor.Geo.ASNOrg,
		identityJSON,
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		r.logger.Database().Error("Visitor insert failed", "error", err.Error(), "visitorId", visitor.VisitorID)
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), r.tenantID)
	return nil
}

// Upsert inserts the visitor or updates its mutable fields. The identity
// document column is deliberately absent from the UPDATE clause: a previously
// bound identity is never overwritten by resolution, only by the explicit
// identification path.
func (r *SQLVisitorRepository) Upsert(ctx context.Context, visitor *domain.Visitor) error {
	const query = `
		INSERT INTO identity_mappings (visitor_id, ip_address, browser, os,
			confidence, identification_method, first_seen, last_seen,
			country, region, city, asn, asn_org, identity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(visitor_id) DO UPDATE SET
			ip_address = excluded.ip_address,
			browser = excluded.browser,
			os = excluded.os,
			confidence = excluded.confidence,
			identification_method = excluded.identification_method,
			last_seen = excluded.last_seen,
			country = excluded.country,
			region = excluded.region,
			city = excluded.city,
			asn = excluded.asn,
			asn_org = excluded.asn_org,
			updated_at = excluded.updated_at`

	start := time.Now()
	r.logger.Database().Debug("Executing visitor upsert", "visitorId", visitor.VisitorID, "tenantId", r.tenantID)

	identityJSON, err := marshalDocument(visitor.Identity)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, query,
		visitor.VisitorID,
		visitor.IPAddress,
		visitor.Browser,
		visitor.OS,
		visitor.Confidence,
		visitor.Method,
		formatTime(visitor.FirstSeen),
		formatTime(visitor.LastSeen),
		visitor.Geo.Country,
		visitor.Geo.Region,
		visitor.Geo.City,
		visitor.Geo.ASN,
		visitor.Geo.ASNOrg,
		identityJSON,
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		r.logger.Database().Error("Visitor upsert failed", "error", err.Error(), "visitorId", visitor.VisitorID)
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	database.CheckAndLogSlowQuery(r.logger, query, time.Since(start), r.tenantID)
	return nil
}

// rowScanner abstracts sql.Row and sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanVisitor scans one row into a Visitor. Returns (nil, nil) when no row.
func scanVisitor(row rowScanner) (*domain.Visitor, error) {
	var visitor domain.Visitor
	var identityJSON sql.NullString
	var firstSeenStr, lastSeenStr, createdAtStr, updatedAtStr string

	err := row.Scan(
		&visitor.VisitorID,
		&visitor.IPAddress,
		&visitor.Browser,
		&visitor.OS,
		&visitor.Confidence,
		&visitor.Method,
		&firstSeenStr,
		&lastSeenStr,
		&visitor.Geo.Country,
		&visitor.Geo.Region,
		&visitor.Geo.City,
		&visitor.Geo.ASN,
		&visitor.Geo.ASNOrg,
		&identityJSON,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, err
	}

	if identityJSON.Valid && identityJSON.String != "" {
		doc, err := unmarshalDocument(identityJSON.String)
		if err != nil {
			return nil, err
		}
		visitor.Identity = doc
	}

	visitor.FirstSeen = parseTime(firstSeenStr)
	visitor.LastSeen = parseTime(lastSeenStr)
	visitor.CreatedAt = parseTime(createdAtStr)
	visitor.UpdatedAt = parseTime(updatedAtStr)

	return &visitor, nil
}

// marshalDocument serializes an identity document to its JSON column value.
// A nil document maps to NULL.
func marshalDocument(doc domain.Document) (any, error) {
	if doc == nil {
		return nil, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize identity document: %w", err)
	}
	return string(data), nil
}

func unmarshalDocument(raw string) (domain.Document, error) {
	var doc domain.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse identity document: %w", err)
	}
	return doc, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(value string) time.Time {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	// Alternative timestamp format written by older rows
	if t, err := time.Parse("2006-01-02 15:04:05", value); err == nil {
		return t
	}
	return time.Time{}
}
