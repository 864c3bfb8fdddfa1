package core

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsRecorder receives service operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
	RecordCount(n int)
	Coerced(column string)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}
func (noopMetrics) RecordCount(int)                                     {}
func (noopMetrics) Coerced(string)                                      {}

// PrometheusMetrics publishes service metrics on a private registry.
type PrometheusMetrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	records    prometheus.Gauge
	coercions  *prometheus.CounterVec
}

// NewPrometheusMetrics registers the mortuary collectors, plus the Go runtime
// and process collectors, on a fresh registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mortuary_operations_total",
			Help: "Service operations by outcome.",
		}, []string{"operation", "result"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mortuary_operation_duration_seconds",
			Help:    "Service operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mortuary_records",
			Help: "Records in the table at the last load.",
		}),
		coercions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mortuary_enum_coercions_total",
			Help: "Enumerated values replaced by their default on load or input.",
		}, []string{"column"}),
	}
	m.registry.MustRegister(
		m.operations, m.durations, m.records, m.coercions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe records a service operation outcome.
func (m *PrometheusMetrics) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	result := "error"
	if success {
		result = "success"
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.durations.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCount sets the record gauge.
func (m *PrometheusMetrics) RecordCount(n int) { m.records.Set(float64(n)) }

// Coerced counts one enum coercion for column.
func (m *PrometheusMetrics) Coerced(column string) { m.coercions.WithLabelValues(column).Inc() }

// Registry exposes the underlying registry.
func (m *PrometheusMetrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
