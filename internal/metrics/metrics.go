// Package metrics records integration runs as Prometheus collectors and can
// push them to a Pushgateway after a CLI invocation.
package metrics

import (
	"context"
	"fmt"

	"db-relay/internal/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	statusSuccess = "success"
	statusFailed  = "failed"
)

// Collector holds the relay's collectors on a private registry.
// A nil *Collector is valid and records nothing.
type Collector struct {
	reg *prometheus.Registry

	runs      *prometheus.CounterVec   // relay_runs_total
	rows      *prometheus.CounterVec   // relay_rows_written_total
	duration  *prometheus.HistogramVec // relay_run_duration_seconds
	batches   *prometheus.CounterVec   // relay_batches_total
	fallbacks prometheus.Counter       // relay_conversion_fallbacks_total
	unmapped  prometheus.Counter       // relay_unmapped_placeholders_total
}

func New() (*Collector, error) {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_runs_total",
			Help: "Integration runs partitioned by integration and status.",
		}, []string{"integration", "status"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_rows_written_total",
			Help: "Rows committed to targets per integration.",
		}, []string{"integration"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_run_duration_seconds",
			Help:    "Duration of integration runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"integration", "status"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_batches_total",
			Help: "Batch and group runs partitioned by status.",
		}, []string{"status"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_conversion_fallbacks_total",
			Help: "Values bound unconverted after a coercion failure.",
		}),
		unmapped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_unmapped_placeholders_total",
			Help: "Placeholders bound as NULL because no source column matched.",
		}),
	}
	for name, col := range map[string]prometheus.Collector{
		"runs":      c.runs,
		"rows":      c.rows,
		"duration":  c.duration,
		"batches":   c.batches,
		"fallbacks": c.fallbacks,
		"unmapped":  c.unmapped,
	} {
		if err := c.reg.Register(col); err != nil {
			return nil, fmt.Errorf("metrics: register %s: %w", name, err)
		}
	}
	return c, nil
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.reg
}

func status(ok bool) string {
	if ok {
		return statusSuccess
	}
	return statusFailed
}

func (c *Collector) ObserveRun(integration string, res model.RunResult) {
	if c == nil {
		return
	}
	s := status(res.Success)
	c.runs.WithLabelValues(integration, s).Inc()
	c.duration.WithLabelValues(integration, s).Observe(float64(res.DurationMs) / 1000)
	if res.Success && res.RowsAffected > 0 {
		c.rows.WithLabelValues(integration).Add(float64(res.RowsAffected))
	}
}

func (c *Collector) ObserveBatch(res model.BatchResult) {
	if c == nil {
		return
	}
	c.batches.WithLabelValues(status(res.Success)).Inc()
}

func (c *Collector) ConversionFallback() {
	if c == nil {
		return
	}
	c.fallbacks.Inc()
}

func (c *Collector) UnmappedPlaceholder() {
	if c == nil {
		return
	}
	c.unmapped.Inc()
}

// Push sends the registry to a Pushgateway under job.
func (c *Collector) Push(ctx context.Context, gatewayURL, job string) error {
	if c == nil {
		return nil
	}
	if gatewayURL == "" {
		return fmt.Errorf("metrics: gateway URL is required")
	}
	if job == "" {
		job = "db-relay"
	}
	if err := push.New(gatewayURL, job).Gatherer(c.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("metrics: push to %s: %w", gatewayURL, err)
	}
	return nil
}
