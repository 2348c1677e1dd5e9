// Package performance provides performance tracking and monitoring capabilities
// for identity engine operations with multi-tenant support.
package performance

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Tracker manages performance markers and provides metrics aggregation
type Tracker struct {
	markers    map[string]*Marker  // Active and completed markers by unique ID
	alerts     []*PerformanceAlert // Active performance alerts
	thresholds *AlertThresholds    // Configurable alert thresholds
	mu         sync.RWMutex        // Protects concurrent access
	started    time.Time           // When tracking started
	config     *TrackerConfig      // Tracker configuration
}

// TrackerConfig contains configuration options for the performance tracker
type TrackerConfig struct {
	MaxMarkers   int  `json:"maxMarkers"`   // Maximum number of markers to retain
	MaxAlerts    int  `json:"maxAlerts"`    // Maximum number of alerts to retain
	EnableAlerts bool `json:"enableAlerts"` // Whether to generate performance alerts
}

// DefaultTrackerConfig returns a sensible default configuration
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		MaxMarkers:   10000,
		MaxAlerts:    500,
		EnableAlerts: true,
	}
}

// AlertThresholds defines performance thresholds for generating alerts
type AlertThresholds struct {
	SlowResponseThreshold     time.Duration `json:"slowResponseThreshold"`     // 500ms
	CriticalResponseThreshold time.Duration `json:"criticalResponseThreshold"` // 5s

	// Operation-specific thresholds
	ResolutionThreshold    time.Duration `json:"resolutionThreshold"`    // 200ms
	PropagationThreshold   time.Duration `json:"propagationThreshold"`   // 1s
	DatabaseQueryThreshold time.Duration `json:"databaseQueryThreshold"` // 50ms
}

// DefaultAlertThresholds returns sensible default alert thresholds
func DefaultAlertThresholds() *AlertThresholds {
	return &AlertThresholds{
		SlowResponseThreshold:     time.Millisecond * 500,
		CriticalResponseThreshold: time.Second * 5,
		ResolutionThreshold:       time.Millisecond * 200,
		PropagationThreshold:      time.Second * 1,
		DatabaseQueryThreshold:    time.Millisecond * 50,
	}
}

// NewTracker creates a new performance tracker with the given configuration
func NewTracker(config *TrackerConfig) *Tracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}

	return &Tracker{
		markers:    make(map[string]*Marker),
		alerts:     make([]*PerformanceAlert, 0),
		thresholds: DefaultAlertThresholds(),
		started:    time.Now(),
		config:     config,
	}
}

// StartOperation creates and tracks a new performance marker for an operation
func (t *Tracker) StartOperation(operation, tenantID string) *Marker {
	marker := &Marker{
		Operation: operation,
		TenantID:  tenantID,
		StartTime: time.Now(),
		Metadata:  make(map[string]any),
		Success:   true, // Assume success until proven otherwise
	}

	markerID := fmt.Sprintf("%s_%s_%d", tenantID, operation, time.Now().UnixNano())

	t.mu.Lock()
	if len(t.markers) < t.config.MaxMarkers {
		t.markers[markerID] = marker
	}
	t.mu.Unlock()

	return marker
}

// StartOperationWithContext creates a performance marker with context cancellation support
func (t *Tracker) StartOperationWithContext(ctx context.Context, operation, tenantID string) *Marker {
	marker := t.StartOperation(operation, tenantID)

	go func() {
		<-ctx.Done()
		if !marker.Completed {
			marker.SetError(ctx.Err())
			marker.Complete()
		}
	}()

	return marker
}

// CompleteOperation manually completes an operation and checks for alerts
func (t *Tracker) CompleteOperation(marker *Marker) {
	if marker == nil || marker.Completed {
		return
	}

	marker.Complete()

	if t.config.EnableAlerts {
		t.checkForAlerts(marker)
	}
}

// checkForAlerts evaluates a completed marker against alert thresholds
func (t *Tracker) checkForAlerts(marker *Marker) {
	if marker == nil || !marker.Completed {
		return
	}

	var newAlerts []*PerformanceAlert

	threshold := t.thresholdFor(marker.Operation)
	switch {
	case marker.Duration > t.thresholds.CriticalResponseThreshold:
		newAlerts = append(newAlerts, t.createAlert(marker, AlertCritical,
			fmt.Sprintf("operation %s took %s", marker.Operation, marker.Duration)))
	case marker.Duration > threshold:
		newAlerts = append(newAlerts, t.createAlert(marker, AlertWarning,
			fmt.Sprintf("operation %s exceeded threshold %s (took %s)", marker.Operation, threshold, marker.Duration)))
	}

	if len(newAlerts) == 0 {
		return
	}

	t.mu.Lock()
	t.alerts = append(t.alerts, newAlerts...)
	if len(t.alerts) > t.config.MaxAlerts {
		t.alerts = t.alerts[len(t.alerts)-t.config.MaxAlerts:]
	}
	t.mu.Unlock()
}

// thresholdFor maps an operation name to its alert threshold
func (t *Tracker) thresholdFor(operation string) time.Duration {
	switch operation {
	case "identity:resolve":
		return t.thresholds.ResolutionThreshold
	case "identity:propagate":
		return t.thresholds.PropagationThreshold
	default:
		return t.thresholds.SlowResponseThreshold
	}
}

func (t *Tracker) createAlert(marker *Marker, severity AlertSeverity, message string) *PerformanceAlert {
	return &PerformanceAlert{
		ID:        fmt.Sprintf("alert_%d", time.Now().UnixNano()),
		Timestamp: time.Now(),
		TenantID:  marker.TenantID,
		Severity:  severity,
		Operation: marker.Operation,
		Threshold: t.thresholdFor(marker.Operation),
		Actual:    marker.Duration,
		Message:   message,
		Metadata:  marker.Metadata,
	}
}

// GetAlerts returns a copy of the current alerts, most recent last
func (t *Tracker) GetAlerts() []*PerformanceAlert {
	t.mu.RLock()
	defer t.mu.RUnlock()

	alerts := make([]*PerformanceAlert, len(t.alerts))
	copy(alerts, t.alerts)
	return alerts
}

// GetMetrics returns completed markers for a tenant ("" for all tenants)
func (t *Tracker) GetMetrics(tenantID string) []Marker {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var metrics []Marker
	for _, marker := range t.markers {
		if marker.Completed && (tenantID == "" || marker.TenantID == tenantID) {
			metrics = append(metrics, *marker)
		}
	}
	return metrics
}
