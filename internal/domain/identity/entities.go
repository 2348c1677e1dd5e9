// Package identity defines the core entities of the identity resolution engine
// and the interfaces for accessing visitor, session, and event records.
// These repositories abstract the data persistence details, ensuring the core
// application is clean and decoupled from the database.
package identity

import "time"

// Method tags how a visitor identity was established.
const (
	MethodFingerprint = "fingerprint" // exact visitor_id match
	MethodIPBrowser   = "ip_browser"  // network address + browser signature correlation
	MethodIP          = "ip"          // network address only
	MethodNewVisitor  = "new_visitor" // first time seen
)

// Confidence floors per identification method.
const (
	ConfidenceFingerprint = 0.8
	ConfidenceIPBrowser   = 0.6
	ConfidenceIP          = 0.4
	ConfidenceNewVisitor  = 1.0
)

// Document is an opaque, caller-defined set of identity traits.
// The engine reads and writes it as a whole value, never field by field.
type Document map[string]any

// Geo carries geolocation and network-origin metadata for a visitor.
type Geo struct {
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
	City    string `json:"city,omitempty"`
	ASN     string `json:"asn,omitempty"`
	ASNOrg  string `json:"asnOrg,omitempty"`
}

// Visitor is a resolved person/device identity keyed by a stable fingerprint id.
// Exactly one row exists per (tenant, visitor id); the identity document is only
// replaced through the explicit identification path.
type Visitor struct {
	VisitorID  string    `json:"visitorId"`
	IPAddress  string    `json:"ipAddress"`
	Browser    string    `json:"browser"`
	OS         string    `json:"os"`
	Confidence float64   `json:"confidence"`
	Method     string    `json:"identificationMethod"`
	FirstSeen  time.Time `json:"firstSeen"`
	LastSeen   time.Time `json:"lastSeen"`
	Geo        Geo       `json:"geo"`
	Identity   Document  `json:"identity,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// CorrelationKey returns the low-confidence matching key for this visitor.
func (v *Visitor) CorrelationKey() string {
	return CorrelationKey(v.IPAddress, v.Browser, v.OS)
}

// CorrelationKey builds the (network address, browser, os) matching key.
func CorrelationKey(ipAddress, browser, os string) string {
	return ipAddress + "|" + browser + "|" + os
}

// Session binds an opaque session token to a visitor, snapshotting the
// resolution outcome at creation time. Immutable after insert.
type Session struct {
	SessionID  string    `json:"sessionId"`
	VisitorID  string    `json:"visitorId"`
	IPAddress  string    `json:"ipAddress"`
	Browser    string    `json:"browser"`
	OS         string    `json:"os"`
	Confidence float64   `json:"confidence"`
	Method     string    `json:"identificationMethod"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ExpiredAt reports whether the session is past its validity window at t.
func (s *Session) ExpiredAt(t time.Time, ttl time.Duration) bool {
	return t.After(s.CreatedAt.Add(ttl))
}

// Event is an append-only record of an action. Rows are never deleted and the
// event facts never change; only the Identity snapshot may be rewritten, by the
// propagation transaction, so history stays queryable under one current identity.
type Event struct {
	EventID    string    `json:"eventId"`
	SessionID  string    `json:"sessionId"`
	VisitorID  string    `json:"visitorId"`
	EventName  string    `json:"eventName"`
	Properties Document  `json:"properties,omitempty"`
	Identity   Document  `json:"identity,omitempty"` // mutable snapshot, distinct from the facts above
	Confidence float64   `json:"confidence"`
	Method     string    `json:"identificationMethod"`
	Geo        Geo       `json:"geo"`
	CreatedAt  time.Time `json:"createdAt"`
}

// EventNameIdentify is the reserved event kind appended by propagation.
const EventNameIdentify = "identify"

// Match is the outcome of a resolution: the visitor the signature resolved to,
// the tier that produced it, and whether the visitor is newly declared.
type Match struct {
	Visitor    *Visitor `json:"visitor"`
	Method     string   `json:"identificationMethod"`
	Confidence float64  `json:"confidence"`
	NewVisitor bool     `json:"newVisitor"`
}

// PropagationResult reports what an identification rewrote.
type PropagationResult struct {
	VisitorID       string `json:"visitorId"`
	UpdatedVisitors int    `json:"updatedVisitors"` // related visitors beyond the primary
	UpdatedEvents   int    `json:"updatedEvents"`
}

// OracleIdentity is the verified identity returned by the identification oracle.
type OracleIdentity struct {
	VisitorID  string    `json:"visitorId"`
	IPAddress  string    `json:"ipAddress"`
	Browser    string    `json:"browser"`
	OS         string    `json:"os"`
	Confidence float64   `json:"confidence"`
	FirstSeen  time.Time `json:"firstSeen"`
	LastSeen   time.Time `json:"lastSeen"`
	Geo        Geo       `json:"geo"`
}
