package services

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/caching/manager"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/concurrency"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/logging"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/performance"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/tenant"
)

var tenantCounter atomic.Int64

func newTestLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	cfg := logging.DefaultLoggerConfig()
	cfg.OutputToFile = false
	cfg.OutputToConsole = true
	cfg.DefaultLevel = slog.LevelError
	logger, err := logging.NewChanneledLogger(cfg)
	require.NoError(t, err)
	return logger
}

func newTestTenantContext(t *testing.T, logger *logging.ChanneledLogger) *tenant.Context {
	t.Helper()
	tenantID := fmt.Sprintf("test_%d", tenantCounter.Add(1))
	info := &tenant.Info{
		TenantID:   tenantID,
		Status:     "active",
		SQLitePath: filepath.Join(t.TempDir(), tenantID+".db"),
	}
	db, err := tenant.NewDatabase(info)
	require.NoError(t, err)

	cacheManager := manager.NewManager(logger)
	cacheManager.InitializeTenant(tenantID)

	return &tenant.Context{
		TenantID:     tenantID,
		Info:         info,
		Database:     db,
		CacheManager: cacheManager,
		Logger:       logger,
	}
}

type fakeVerifier struct {
	oracle *identity.OracleIdentity
	err    error
	calls  atomic.Int64
}

func (f *fakeVerifier) VerifyAndFetch(ctx context.Context, proofToken string) (*identity.OracleIdentity, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.oracle, nil
}

type testEngine struct {
	tenantCtx   *tenant.Context
	locks       *concurrency.LockRegistry
	verifier    *fakeVerifier
	resolution  *ResolutionService
	sessions    *SessionService
	events      *EventService
	propagation *PropagationService
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	logger := newTestLogger(t)
	tenantCtx := newTestTenantContext(t, logger)
	perfTracker := performance.NewTracker(nil)
	locks := concurrency.NewLockRegistry(logger)
	t.Cleanup(locks.Close)

	verifier := &fakeVerifier{}
	resolution := NewResolutionService(locks, logger, perfTracker)
	sessions := NewSessionService(resolution, logger, perfTracker)
	events := NewEventService(sessions, resolution, logger, perfTracker)
	propagation := NewPropagationService(sessions, verifier, locks, logger, perfTracker)

	return &testEngine{
		tenantCtx:   tenantCtx,
		locks:       locks,
		verifier:    verifier,
		resolution:  resolution,
		sessions:    sessions,
		events:      events,
		propagation: propagation,
	}
}

// seedVisitor inserts a visitor row directly through the repository.
func seedVisitor(t *testing.T, tenantCtx *tenant.Context, visitor *identity.Visitor) {
	t.Helper()
	require.NoError(t, tenantCtx.VisitorRepo().Create(context.Background(), visitor))
}
