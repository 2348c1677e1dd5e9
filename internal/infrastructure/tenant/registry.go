// Package tenant manages tenant-specific configurations and context,
// isolating multi-tenancy logic from the rest of the application.
package tenant

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/vigneshICustomer/finger-print-bn/internal/domain/identity"
	"github.com/vigneshICustomer/finger-print-bn/pkg/config"
)

// tenantIDPattern is the allow-list for tenant identifiers. A tenant id
// addresses a storage partition, so anything outside alphanumerics and
// underscore is rejected before it reaches the storage layer.
var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ValidateTenantID rejects malformed tenant identifiers.
func ValidateTenantID(tenantID string) error {
	if tenantID == "" || len(tenantID) > 64 || !tenantIDPattern.MatchString(tenantID) {
		return fmt.Errorf("%w: %q", identity.ErrInvalidTenant, tenantID)
	}
	return nil
}

// Registry holds the set of registered tenants and their partition handles.
type Registry struct {
	Tenants     map[string]*Info `json:"tenants"`
	LastUpdated time.Time        `json:"lastUpdated"`
}

// Info describes one tenant's pre-registered storage partition. Tenant ids are
// never interpolated into connection strings; the partition location is read
// from here.
type Info struct {
	TenantID      string    `json:"tenantId"`
	Status        string    `json:"status"` // active | reserved
	SQLitePath    string    `json:"sqlitePath,omitempty"`
	TursoDatabase string    `json:"tursoDatabase,omitempty"`
	TursoToken    string    `json:"tursoToken,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

var registryMu sync.Mutex

func registryPath() string {
	return filepath.Join(config.TenantDataDir, "tenants.json")
}

// LoadRegistry reads the tenant registry from disk. A missing registry yields
// an empty one.
func LoadRegistry() (*Registry, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	return loadRegistryLocked()
}

func loadRegistryLocked() (*Registry, error) {
	data, err := os.ReadFile(registryPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &Registry{Tenants: make(map[string]*Info)}, nil
		}
		return nil, fmt.Errorf("failed to read tenant registry: %w", err)
	}

	var registry Registry
	if err := json.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse tenant registry: %w", err)
	}
	if registry.Tenants == nil {
		registry.Tenants = make(map[string]*Info)
	}
	return &registry, nil
}

// RegisterTenant validates the id and records a new tenant with a sqlite
// partition under the tenant data directory.
func RegisterTenant(tenantID string) (*Info, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return nil, err
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	registry, err := loadRegistryLocked()
	if err != nil {
		return nil, err
	}

	if info, exists := registry.Tenants[tenantID]; exists {
		return info, nil
	}
	if len(registry.Tenants) >= config.MaxTenants {
		return nil, fmt.Errorf("tenant limit reached (%d)", config.MaxTenants)
	}

	info := &Info{
		TenantID:   tenantID,
		Status:     "active",
		SQLitePath: filepath.Join(config.TenantDataDir, tenantID, "engine.db"),
		CreatedAt:  time.Now().UTC(),
	}
	registry.Tenants[tenantID] = info
	registry.LastUpdated = time.Now().UTC()

	if err := saveRegistryLocked(registry); err != nil {
		return nil, err
	}
	return info, nil
}

func saveRegistryLocked(registry *Registry) error {
	if err := os.MkdirAll(config.TenantDataDir, 0755); err != nil {
		return fmt.Errorf("failed to create tenant data directory: %w", err)
	}

	data, err := json.MarshalIndent(registry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize tenant registry: %w", err)
	}
	if err := os.WriteFile(registryPath(), data, 0644); err != nil {
		return fmt.Errorf("failed to write tenant registry: %w", err)
	}
	return nil
}

// Lookup resolves a validated tenant id to its registered partition info.
func (r *Registry) Lookup(tenantID string) (*Info, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	info, exists := r.Tenants[tenantID]
	if !exists {
		return nil, fmt.Errorf("%w: unknown tenant %q", identity.ErrInvalidTenant, tenantID)
	}
	return info, nil
}
