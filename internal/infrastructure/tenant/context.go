// Package tenant provides tenant context management for multi-tenant support.
package tenant

import (
	domainIdentity "github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/caching/manager"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/logging"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/persistence/database"
	persistenceIdentity "github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/persistence/identity"
)

// Context holds tenant-specific request context
type Context struct {
	TenantID     string
	Info         *Info
	Database     *Database
	CacheManager *manager.Manager
	Logger       *logging.ChanneledLogger
}

// Close cleans up the tenant context
func (ctx *Context) Close() error {
	if ctx.Database != nil {
		return ctx.Database.Close()
	}
	return nil
}

// GetTenantID returns the tenant ID for this context
func (ctx *Context) GetTenantID() string {
	return ctx.TenantID
}

// IsActive returns true if the tenant is active
func (ctx *Context) IsActive() bool {
	return ctx.Info != nil && ctx.Info.Status == "active"
}

// GetDatabaseInfo returns database connection information for logging
func (ctx *Context) GetDatabaseInfo() string {
	if ctx.Database != nil {
		return ctx.Database.GetConnectionInfo()
	}
	return "no database connection"
}

// =============================================================================
// Repository Factory Methods
// =============================================================================

// VisitorRepo returns a visitor repository instance.
// It returns the interface type from the domain layer.
func (ctx *Context) VisitorRepo() domainIdentity.VisitorRepository {
	db := &database.DB{DB: ctx.Database.Conn}
	return persistenceIdentity.NewSQLVisitorRepository(db, ctx.Logger, ctx.TenantID)
}

// SessionRepo returns a session repository instance.
func (ctx *Context) SessionRepo() domainIdentity.SessionRepository {
	db := &database.DB{DB: ctx.Database.Conn}
	return persistenceIdentity.NewSQLSessionRepository(db, ctx.Logger, ctx.TenantID)
}

// EventRepo returns an event repository instance.
func (ctx *Context) EventRepo() domainIdentity.EventRepository {
	db := &database.DB{DB: ctx.Database.Conn}
	return persistenceIdentity.NewSQLEventRepository(db, ctx.Logger, ctx.TenantID)
}
