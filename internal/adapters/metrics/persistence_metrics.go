package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PersistenceMetricsCollector handles passenger store metrics
type PersistenceMetricsCollector struct {
	writesTotal  *prometheus.CounterVec
	sweepDeleted prometheus.Counter
	sweepsTotal  prometheus.Counter
}

// NewPersistenceMetricsCollector creates a new persistence metrics collector
func NewPersistenceMetricsCollector() *PersistenceMetricsCollector {
	return &PersistenceMetricsCollector{
		writesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "writes_total",
				Help:      "Total passenger writes by outcome",
			},
			[]string{"outcome"},
		),

		sweepDeleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "expired_deleted_total",
				Help:      "Total expired passengers removed by the janitor",
			},
		),

		sweepsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "expired_sweeps_total",
				Help:      "Total janitor sweeps executed",
			},
		),
	}
}

// Register registers all persistence metrics with the Prometheus registry
func (c *PersistenceMetricsCollector) Register() error {
	if Registry == nil {
		return nil // Metrics not enabled
	}

	metrics := []prometheus.Collector{
		c.writesTotal,
		c.sweepDeleted,
		c.sweepsTotal,
	}

	for _, metric := range metrics {
		if err := Registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

// RecordBulkCreate records a bulk write outcome
func (c *PersistenceMetricsCollector) RecordBulkCreate(ok, failed int) {
	c.writesTotal.WithLabelValues("ok").Add(float64(ok))
	c.writesTotal.WithLabelValues("failed").Add(float64(failed))
}

// RecordExpiredSweep records a janitor sweep
func (c *PersistenceMetricsCollector) RecordExpiredSweep(deleted int) {
	c.sweepsTotal.Inc()
	c.sweepDeleted.Add(float64(deleted))
}
