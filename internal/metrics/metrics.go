// Package metrics exposes migration progress as Prometheus metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/akrishnanDG/unit-orchestrator/internal/models"
)

const metricsNamespace = "unit_orchestrator"

// Collector is a prometheus.Collector that tracks batches and unit outcomes.
// It satisfies migrator.Observer.
type Collector struct {
	batches      prometheus.Counter
	batchSize    prometheus.Histogram
	units        *prometheus.CounterVec
	unitDuration *prometheus.HistogramVec
	skipped      prometheus.Counter
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		batches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "batches_total",
				Help:      "The number of batches started.",
			},
		),
		batchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "batch_size",
				Help:      "The number of units dispatched per batch.",
				Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
			},
		),
		units: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "units_total",
				Help:      "The number of units that reached a terminal status.",
			}, []string{"status", "complexity"},
		),
		unitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "unit_duration_seconds",
				Help:      "The time taken to process a unit.",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
			}, []string{"status"},
		),
		skipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "units_skipped_total",
				Help:      "The number of units skipped because a dependency did not complete.",
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.batches.Describe(ch)
	c.batchSize.Describe(ch)
	c.units.Describe(ch)
	c.unitDuration.Describe(ch)
	c.skipped.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.batches.Collect(ch)
	c.batchSize.Collect(ch)
	c.units.Collect(ch)
	c.unitDuration.Collect(ch)
	c.skipped.Collect(ch)
}

// BatchStarted records a dispatched batch.
func (c *Collector) BatchStarted(_ int, size int) {
	c.batches.Inc()
	c.batchSize.Observe(float64(size))
}

// UnitSettled records a unit that reached a terminal status.
func (c *Collector) UnitSettled(unit models.MigrationUnit, status models.Status, elapsed time.Duration) {
	complexity := string(unit.Complexity)
	if complexity == "" {
		complexity = "unknown"
	}
	c.units.WithLabelValues(string(status), complexity).Inc()
	c.unitDuration.WithLabelValues(string(status)).Observe(elapsed.Seconds())
}

// UnitSkipped records a unit that was never dispatched.
func (c *Collector) UnitSkipped(models.MigrationUnit) {
	c.skipped.Inc()
}

// Registry returns a registry holding only c, so textfile exports do not
// pick up process metrics from the default registry.
func (c *Collector) Registry() (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return nil, fmt.Errorf("failed to register collector: %w", err)
	}
	return reg, nil
}

// WriteTextfile writes the current metric values to path in the Prometheus
// text exposition format, for pickup by a node exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	reg, err := c.Registry()
	if err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
