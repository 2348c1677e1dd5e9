package tenant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
	"github.com/vigneshICustomer/finger-print-bn/pkg/config"
)

func TestValidateTenantID(t *testing.T) {
	tests := []struct {
		name     string
		tenantID string
		wantErr  bool
	}{
		{"simple", "acme", false},
		{"alphanumeric", "acme123", false},
		{"underscore", "acme_corp", false},
		{"mixed case", "AcmeCorp", false},
		{"empty", "", true},
		{"hyphen", "acme-corp", true},
		{"dot", "acme.corp", true},
		{"path traversal", "../other", true},
		{"slash", "acme/corp", true},
		{"sql metacharacters", "acme'; DROP TABLE", true},
		{"space", "acme corp", true},
		{"unicode", "acmé", true},
		{"overlong", strings.Repeat("a", 65), true},
		{"at limit", strings.Repeat("a", 64), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTenantID(tt.tenantID)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, identity.ErrInvalidTenant)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	prev := config.TenantDataDir
	config.TenantDataDir = t.TempDir()
	t.Cleanup(func() { config.TenantDataDir = prev })

	// Fresh directory: empty registry, unknown tenants rejected.
	registry, err := LoadRegistry()
	require.NoError(t, err)
	assert.Empty(t, registry.Tenants)

	_, err = registry.Lookup("acme")
	assert.ErrorIs(t, err, identity.ErrInvalidTenant)

	info, err := RegisterTenant("acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", info.TenantID)
	assert.Equal(t, "active", info.Status)
	assert.NotEmpty(t, info.SQLitePath)

	// Registration persists across reloads.
	registry, err = LoadRegistry()
	require.NoError(t, err)
	found, err := registry.Lookup("acme")
	require.NoError(t, err)
	assert.Equal(t, info.SQLitePath, found.SQLitePath)

	// Re-registering is a no-op returning the existing partition.
	again, err := RegisterTenant("acme")
	require.NoError(t, err)
	assert.Equal(t, info.SQLitePath, again.SQLitePath)
}

func TestRegisterTenantRejectsMalformedIDs(t *testing.T) {
	prev := config.TenantDataDir
	config.TenantDataDir = t.TempDir()
	t.Cleanup(func() { config.TenantDataDir = prev })

	_, err := RegisterTenant("../escape")
	assert.ErrorIs(t, err, identity.ErrInvalidTenant)

	registry, err := LoadRegistry()
	require.NoError(t, err)
	assert.Empty(t, registry.Tenants, "a rejected id must leave no registry trace")
}

func TestRegisterTenantEnforcesLimit(t *testing.T) {
	prevDir := config.TenantDataDir
	prevMax := config.MaxTenants
	config.TenantDataDir = t.TempDir()
	config.MaxTenants = 2
	t.Cleanup(func() {
		config.TenantDataDir = prevDir
		config.MaxTenants = prevMax
	})

	_, err := RegisterTenant("one")
	require.NoError(t, err)
	_, err = RegisterTenant("two")
	require.NoError(t, err)

	_, err = RegisterTenant("three")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenant limit")
}
