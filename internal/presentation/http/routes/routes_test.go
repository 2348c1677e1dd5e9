package routes

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigneshICustomer/finger-print-bn/internal/application/container"
	cachemanager "github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/caching/manager"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/logging"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/tenant"
	"github.com/vigneshICustomer/finger-print-bn/pkg/config"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	prevDir := config.TenantDataDir
	config.TenantDataDir = t.TempDir()
	t.Cleanup(func() { config.TenantDataDir = prevDir })

	_, err := tenant.RegisterTenant("acme")
	require.NoError(t, err)

	loggerCfg := logging.DefaultLoggerConfig()
	loggerCfg.OutputToFile = false
	loggerCfg.DefaultLevel = slog.LevelError
	logger, err := logging.NewChanneledLogger(loggerCfg)
	require.NoError(t, err)

	cacheManager := cachemanager.NewManager(logger)
	tenantManager := tenant.NewManager(logger, cacheManager)
	appContainer := container.NewContainer(tenantManager, cacheManager, logger)
	t.Cleanup(appContainer.LockRegistry.Close)

	return SetupRoutes(appContainer)
}

func doJSON(t *testing.T, router *gin.Engine, method, path, tenantID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tenantID != "" {
		req.Header.Set("X-Tenant-ID", tenantID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v1/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestTenantHeaderRequired(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/session/init", "", map[string]string{"browser": "Chrome"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownTenantRejected(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/session/init", "nobody", map[string]string{"browser": "Chrome"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/session/init", "../escape", map[string]string{"browser": "Chrome"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSessionTrackIdentifyFlow(t *testing.T) {
	router := newTestRouter(t)

	// Init a session.
	w := doJSON(t, router, http.MethodPost, "/api/v1/session/init", "acme", map[string]any{
		"visitorId": "fp-1",
		"ipAddress": "203.0.113.10",
		"browser":   "Chrome 126",
		"os":        "Linux",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var initBody struct {
		SessionID  string `json:"sessionId"`
		VisitorID  string `json:"visitorId"`
		NewVisitor bool   `json:"newVisitor"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &initBody))
	require.NotEmpty(t, initBody.SessionID)
	assert.Equal(t, "fp-1", initBody.VisitorID)
	assert.True(t, initBody.NewVisitor)

	// Track an event.
	w = doJSON(t, router, http.MethodPost, "/api/v1/events/track", "acme", map[string]any{
		"sessionId":  initBody.SessionID,
		"eventName":  "page_view",
		"properties": map[string]any{"path": "/pricing"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Identify.
	w = doJSON(t, router, http.MethodPost, "/api/v1/identify", "acme", map[string]any{
		"sessionId": initBody.SessionID,
		"identity":  map[string]any{"email": "ada@example.com"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// List the session's events: the tracked one plus the identify event.
	w = doJSON(t, router, http.MethodGet, "/api/v1/session/"+initBody.SessionID+"/events", "acme", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var listBody struct {
		Events []struct {
			EventName string         `json:"eventName"`
			Identity  map[string]any `json:"identity"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listBody))
	require.Len(t, listBody.Events, 2)
	for _, event := range listBody.Events {
		assert.Equal(t, "ada@example.com", event.Identity["email"])
	}
}

func TestTrackUnknownSession(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v1/events/track", "acme", map[string]any{
		"sessionId": "no-such-session",
		"eventName": "page_view",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProvisioningDisabledWithoutAdminKey(t *testing.T) {
	router := newTestRouter(t)

	prev := config.AdminKeyHash
	config.AdminKeyHash = ""
	t.Cleanup(func() { config.AdminKeyHash = prev })

	w := doJSON(t, router, http.MethodPost, "/api/v1/tenants", "", map[string]string{"tenantId": "newco"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}
