package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SpawnMetricsCollector handles all spawn engine metrics
type SpawnMetricsCollector struct {
	cyclesTotal     *prometheus.CounterVec
	passengersTotal *prometheus.CounterVec
	cycleDuration   *prometheus.HistogramVec
	fallbacksTotal  *prometheus.CounterVec
}

// NewSpawnMetricsCollector creates a new spawn metrics collector
func NewSpawnMetricsCollector() *SpawnMetricsCollector {
	return &SpawnMetricsCollector{
		// Cycle counter by spawner and outcome
		cyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cycles_total",
				Help:      "Total number of spawn cycles by spawner and status",
			},
			[]string{"spawner", "status"},
		),

		// Spawned passenger counter
		passengersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "passengers_total",
				Help:      "Total number of passengers spawned by spawner",
			},
			[]string{"spawner"},
		),

		// Cycle duration histogram
		cycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cycle_duration_seconds",
				Help:      "Spawn cycle duration distribution",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
			},
			[]string{"spawner"},
		),

		// Route-only fallback counter
		fallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "fallbacks_total",
				Help:      "Total number of route-only fallbacks by spawner",
			},
			[]string{"spawner"},
		),
	}
}

// Register registers all spawn metrics with the Prometheus registry
func (c *SpawnMetricsCollector) Register() error {
	if Registry == nil {
		return nil // Metrics not enabled
	}

	metrics := []prometheus.Collector{
		c.cyclesTotal,
		c.passengersTotal,
		c.cycleDuration,
		c.fallbacksTotal,
	}

	for _, metric := range metrics {
		if err := Registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

// RecordSpawnCycle records a spawn cycle completion
func (c *SpawnMetricsCollector) RecordSpawnCycle(spawner string, spawned int, duration float64, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	c.cyclesTotal.WithLabelValues(spawner, status).Inc()
	c.passengersTotal.WithLabelValues(spawner).Add(float64(spawned))
	c.cycleDuration.WithLabelValues(spawner).Observe(duration)
}

// RecordFallback records a route-only fallback
func (c *SpawnMetricsCollector) RecordFallback(spawner string) {
	c.fallbacksTotal.WithLabelValues(spawner).Inc()
}
