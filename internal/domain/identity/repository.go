package identity

import "context"

// VisitorRepository defines the operations for persisting Visitor entities.
type VisitorRepository interface {
	FindByID(ctx context.Context, visitorID string) (*Visitor, error)
	// FindByIPAddress returns visitors sharing a network address, most
	// recently seen first.
	FindByIPAddress(ctx context.Context, ipAddress string) ([]*Visitor, error)
	Create(ctx context.Context, visitor *Visitor) error
	// Upsert updates mutable fields for an existing visitor, preserving any
	// previously bound identity document.
	Upsert(ctx context.Context, visitor *Visitor) error
}

// SessionRepository defines the operations for persisting Session entities.
// Sessions are immutable after creation; expiry is checked at load time.
type SessionRepository interface {
	FindByID(ctx context.Context, sessionID string) (*Session, error)
	Create(ctx context.Context, session *Session) error
}

// EventRepository defines the operations for persisting Event entities.
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	FindBySessionID(ctx context.Context, sessionID string) ([]*Event, error)
	FindByVisitorID(ctx context.Context, visitorID string) ([]*Event, error)
}

// Verifier is the identification oracle consumed by the propagation path.
// VerifyAndFetch must complete before any cluster lock is acquired.
type Verifier interface {
	VerifyAndFetch(ctx context.Context, proofToken string) (*OracleIdentity, error)
}
