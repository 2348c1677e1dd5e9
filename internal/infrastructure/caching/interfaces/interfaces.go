// Package interfaces defines the cache contracts consumed by the application layer.
package interfaces

import "github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"

// IdentityCache is the time-bounded, read-shared visitor cache in front of the
// store. It must never be treated as a write path; propagation invalidates it
// synchronously for every touched visitor.
type IdentityCache interface {
	InitializeTenant(tenantID string)
	GetVisitor(tenantID, visitorID string) (*identity.Visitor, bool)
	SetVisitor(tenantID string, visitor *identity.Visitor)
	// VisitorGeneration and SetVisitorIfGeneration pair an unlocked store
	// read with a conditional cache write: the write is dropped when an
	// invalidation landed in between.
	VisitorGeneration(tenantID, visitorID string) uint64
	SetVisitorIfGeneration(tenantID string, visitor *identity.Visitor, generation uint64) bool
	InvalidateVisitor(tenantID, visitorID string)
	InvalidateVisitors(tenantID string, visitorIDs []string)
}
