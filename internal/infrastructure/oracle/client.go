// Package oracle provides the client for the external fingerprint
// identification service. The engine never trusts a caller-asserted visitor
// identifier when a proof token is supplied; the proof is verified here first.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
	"github.com/vigneshICustomer/finger-print-bn/internal/infrastructure/observability/logging"
	"github.com/vigneshICustomer/finger-print-bn/pkg/config"
)

// Interface assertion: the HTTP client satisfies the domain verifier contract.
var _ identity.Verifier = (*HTTPClient)(nil)

// HTTPClient calls the identification oracle over HTTPS.
type HTTPClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *logging.ChanneledLogger
}

// NewHTTPClient builds an oracle client from the configured endpoint and key.
func NewHTTPClient(logger *logging.ChanneledLogger) *HTTPClient {
	return &HTTPClient{
		endpoint: config.OracleEndpoint,
		apiKey:   config.OracleAPIKey,
		client:   &http.Client{Timeout: config.OracleTimeout},
		logger:   logger,
	}
}

type verifyRequest struct {
	ProofToken string `json:"proofToken"`
}

type verifyResponse struct {
	Verified   bool    `json:"verified"`
	VisitorID  string  `json:"visitorId"`
	IPAddress  string  `json:"ip"`
	Browser    string  `json:"browserName"`
	OS         string  `json:"os"`
	Confidence float64 `json:"confidence"`
	FirstSeen  string  `json:"firstSeenAt"`
	LastSeen   string  `json:"lastSeenAt"`
	Country    string  `json:"country"`
	Region     string  `json:"region"`
	City       string  `json:"city"`
	ASN        string  `json:"asn"`
	ASNOrg     string  `json:"asnOrg"`
}

// VerifyAndFetch posts the proof token to the oracle and returns the verified
// identity, or ErrVerificationFailed if the oracle rejects the proof. Must be
// called before any cluster lock is acquired.
func (c *HTTPClient) VerifyAndFetch(ctx context.Context, proofToken string) (*identity.OracleIdentity, error) {
	start := time.Now()

	body, err := json.Marshal(verifyRequest{ProofToken: proofToken})
	if err != nil {
		return nil, fmt.Errorf("failed to encode oracle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build oracle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Auth-API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.Oracle().Error("Oracle request failed", "error", err.Error(), "duration", time.Since(start))
		}
		return nil, fmt.Errorf("oracle unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: oracle returned %d", identity.ErrVerificationFailed, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle returned unexpected status %d", resp.StatusCode)
	}

	var decoded verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode oracle response: %w", err)
	}
	if !decoded.Verified || decoded.VisitorID == "" {
		return nil, fmt.Errorf("%w: proof rejected", identity.ErrVerificationFailed)
	}

	if c.logger != nil {
		c.logger.Oracle().Info("Proof verified", "visitorId", decoded.VisitorID, "duration", time.Since(start))
	}

	return &identity.OracleIdentity{
		VisitorID:  decoded.VisitorID,
		IPAddress:  decoded.IPAddress,
		Browser:    decoded.Browser,
		OS:         decoded.OS,
		Confidence: decoded.Confidence,
		FirstSeen:  parseOracleTime(decoded.FirstSeen),
		LastSeen:   parseOracleTime(decoded.LastSeen),
		Geo: identity.Geo{
			Country: decoded.Country,
			Region:  decoded.Region,
			City:    decoded.City,
			ASN:     decoded.ASN,
			ASNOrg:  decoded.ASNOrg,
		},
	}, nil
}

func parseOracleTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}
