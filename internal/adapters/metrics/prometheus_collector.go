package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// Namespace for all metrics
	namespace = "fleetsim"
	// Subsystem for spawn engine metrics
	subsystem = "spawn"
)

var (
	// Registry is the global Prometheus registry for all metrics
	Registry *prometheus.Registry

	// globalSpawnCollector is the singleton spawn metrics collector
	// Set by SetGlobalSpawnCollector() when metrics are enabled
	globalSpawnCollector SpawnMetricsRecorder

	// globalPersistenceCollector is the singleton persistence metrics collector
	globalPersistenceCollector PersistenceMetricsRecorder
)

// SpawnMetricsRecorder defines the interface for recording spawn engine events
// This interface is used by application code to record metrics
type SpawnMetricsRecorder interface {
	RecordSpawnCycle(spawner string, spawned int, duration float64, success bool)
	RecordFallback(spawner string)
}

// PersistenceMetricsRecorder defines the interface for recording passenger
// store events
type PersistenceMetricsRecorder interface {
	RecordBulkCreate(ok, failed int)
	RecordExpiredSweep(deleted int)
}

// InitRegistry initializes the Prometheus registry
// Should be called once at application startup if metrics are enabled
func InitRegistry() {
	Registry = prometheus.NewRegistry()
}

// GetRegistry returns the global Prometheus registry
// Returns nil if metrics are not initialized
func GetRegistry() *prometheus.Registry {
	return Registry
}

// IsEnabled returns true if metrics collection is enabled
func IsEnabled() bool {
	return Registry != nil
}

// SetGlobalSpawnCollector sets the global spawn metrics collector
func SetGlobalSpawnCollector(collector SpawnMetricsRecorder) {
	globalSpawnCollector = collector
}

// RecordSpawnCycle records a spawn cycle completion globally
func RecordSpawnCycle(spawner string, spawned int, duration float64, success bool) {
	if globalSpawnCollector != nil {
		globalSpawnCollector.RecordSpawnCycle(spawner, spawned, duration, success)
	}
}

// RecordFallback records a route-only fallback globally
func RecordFallback(spawner string) {
	if globalSpawnCollector != nil {
		globalSpawnCollector.RecordFallback(spawner)
	}
}

// SetGlobalPersistenceCollector sets the global persistence metrics collector
func SetGlobalPersistenceCollector(collector PersistenceMetricsRecorder) {
	globalPersistenceCollector = collector
}

// RecordBulkCreate records a bulk write outcome globally
func RecordBulkCreate(ok, failed int) {
	if globalPersistenceCollector != nil {
		globalPersistenceCollector.RecordBulkCreate(ok, failed)
	}
}

// RecordExpiredSweep records a janitor sweep globally
func RecordExpiredSweep(deleted int) {
	if globalPersistenceCollector != nil {
		globalPersistenceCollector.RecordExpiredSweep(deleted)
	}
}
