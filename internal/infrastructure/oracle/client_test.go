package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
	"github.com/vigneshICustomer/finger-print-bn/pkg/config"
)

func newClientFor(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	prevEndpoint := config.OracleEndpoint
	prevKey := config.OracleAPIKey
	config.OracleEndpoint = server.URL
	config.OracleAPIKey = "test-key"
	t.Cleanup(func() {
		config.OracleEndpoint = prevEndpoint
		config.OracleAPIKey = prevKey
	})

	return NewHTTPClient(nil)
}

func TestVerifyAndFetchSuccess(t *testing.T) {
	client := newClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("Auth-API-Key"))

		var req verifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "proof-abc", req.ProofToken)

		json.NewEncoder(w).Encode(verifyResponse{
			Verified:   true,
			VisitorID:  "fp-1",
			IPAddress:  "203.0.113.10",
			Browser:    "Chrome 126",
			OS:         "Linux",
			Confidence: 0.97,
			FirstSeen:  "2026-08-01T10:00:00Z",
			Country:    "DE",
		})
	})

	verified, err := client.VerifyAndFetch(context.Background(), "proof-abc")
	require.NoError(t, err)
	assert.Equal(t, "fp-1", verified.VisitorID)
	assert.Equal(t, "203.0.113.10", verified.IPAddress)
	assert.Equal(t, 0.97, verified.Confidence)
	assert.Equal(t, "DE", verified.Geo.Country)
	assert.Equal(t, 2026, verified.FirstSeen.Year())
}

func TestVerifyAndFetchRejection(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			"forbidden status",
			func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusForbidden) },
		},
		{
			"not found status",
			func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
		},
		{
			"unverified payload",
			func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(verifyResponse{Verified: false})
			},
		},
		{
			"verified without visitor id",
			func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(verifyResponse{Verified: true})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClientFor(t, tt.handler)
			_, err := client.VerifyAndFetch(context.Background(), "proof-abc")
			require.Error(t, err)
			assert.ErrorIs(t, err, identity.ErrVerificationFailed)
		})
	}
}

func TestVerifyAndFetchServerError(t *testing.T) {
	client := newClientFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.VerifyAndFetch(context.Background(), "proof-abc")
	require.Error(t, err)
	// A flaky oracle is not a verification verdict.
	assert.NotErrorIs(t, err, identity.ErrVerificationFailed)
}
