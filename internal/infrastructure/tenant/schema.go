package tenant

import "database/sql"

// Schema for one tenant partition. Tenant isolation comes from partition
// separation (one database per tenant), so no tenant column exists and
// cross-tenant queries are impossible by construction.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS identity_mappings (
		visitor_id TEXT PRIMARY KEY,
		ip_address TEXT NOT NULL DEFAULT '',
		browser TEXT NOT NULL DEFAULT '',
		os TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		identification_method TEXT NOT NULL DEFAULT 'new_visitor',
		first_seen TEXT NOT NULL,
		last_seen TEXT NOT NULL,
		country TEXT NOT NULL DEFAULT '',
		region TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		asn TEXT NOT NULL DEFAULT '',
		asn_org TEXT NOT NULL DEFAULT '',
		identity TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_identity_mappings_ip
		ON identity_mappings (ip_address, last_seen DESC)`,
	`CREATE TABLE IF NOT EXISTS session_mappings (
		session_id TEXT PRIMARY KEY,
		visitor_id TEXT NOT NULL,
		ip_address TEXT NOT NULL DEFAULT '',
		browser TEXT NOT NULL DEFAULT '',
		os TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		identification_method TEXT NOT NULL DEFAULT 'new_visitor',
		created_at TEXT NOT NULL,
		FOREIGN KEY (visitor_id) REFERENCES identity_mappings(visitor_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_session_mappings_visitor
		ON session_mappings (visitor_id)`,
	`CREATE TABLE IF NOT EXISTS events (
		event_id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		visitor_id TEXT NOT NULL,
		event_name TEXT NOT NULL,
		properties TEXT,
		identity TEXT,
		confidence REAL NOT NULL DEFAULT 0,
		identification_method TEXT NOT NULL DEFAULT 'new_visitor',
		country TEXT NOT NULL DEFAULT '',
		region TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		FOREIGN KEY (visitor_id) REFERENCES identity_mappings(visitor_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_visitor ON events (visitor_id)`,
	`CREATE INDEX IF NOT EXISTS idx_events_session
		ON events (session_id, created_at)`,
}

// Migrate applies the partition schema. Statements are idempotent.
func Migrate(conn *sql.DB) error {
	for _, stmt := range migrations {
		if _, err := conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
