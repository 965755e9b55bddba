// Package metrics provides optional Prometheus metrics for the retention
// engine.
//
// All metrics are opt-in: if InitRegistry is not called, constructors return
// a no-op implementation with zero overhead. The engine runs identically with
// or without metrics collection enabled.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// registry is the global Prometheus registry for all mediasweep metrics.
	// Protected by registryOnce for write-once, read-many access.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// Safe to call multiple times; subsequent calls are ignored. If never called,
// metrics constructors return no-op implementations.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether metrics collection is enabled.
func IsEnabled() bool {
	return GetRegistry() != nil
}

// RetentionMetrics records retention run outcomes.
type RetentionMetrics interface {
	// RecordProcessed counts a record reaching a terminal per-item outcome
	// ("cleaned", "skipped_claimed", "error").
	RecordProcessed(outcome string)

	// BackendMutation counts a destructive backend call by kind
	// ("content_addressed", "object_store") and operation.
	BackendMutation(kind, operation string)

	// BytesFreed adds to the freed-byte total.
	BytesFreed(bytes uint64)

	// DuplicateSkipped counts a locator dedup hit within a run.
	DuplicateSkipped()

	// RunCompleted counts a finished run by terminal status.
	RunCompleted(status string)
}

type retentionMetrics struct {
	processed  *prometheus.CounterVec
	mutations  *prometheus.CounterVec
	bytesFreed prometheus.Counter
	duplicates prometheus.Counter
	runs       *prometheus.CounterVec
}

// NewRetentionMetrics creates Prometheus-backed retention metrics, or a no-op
// implementation when metrics are disabled.
func NewRetentionMetrics() RetentionMetrics {
	if !IsEnabled() {
		return noopRetentionMetrics{}
	}

	reg := GetRegistry()

	return &retentionMetrics{
		processed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediasweep_records_processed_total",
				Help: "Records processed by the retention engine, by outcome",
			},
			[]string{"outcome"},
		),
		mutations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediasweep_backend_mutations_total",
				Help: "Destructive backend calls by backend kind and operation",
			},
			[]string{"kind", "operation"},
		),
		bytesFreed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "mediasweep_bytes_freed_total",
				Help: "Total bytes attributed to records successfully cleaned",
			},
		),
		duplicates: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "mediasweep_duplicate_locators_skipped_total",
				Help: "Locators skipped because they were already acted on within the run",
			},
		),
		runs: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediasweep_runs_total",
				Help: "Retention runs by terminal status",
			},
			[]string{"status"},
		),
	}
}

func (m *retentionMetrics) RecordProcessed(outcome string) {
	m.processed.WithLabelValues(outcome).Inc()
}

func (m *retentionMetrics) BackendMutation(kind, operation string) {
	m.mutations.WithLabelValues(kind, operation).Inc()
}

func (m *retentionMetrics) BytesFreed(bytes uint64) {
	m.bytesFreed.Add(float64(bytes))
}

func (m *retentionMetrics) DuplicateSkipped() {
	m.duplicates.Inc()
}

func (m *retentionMetrics) RunCompleted(status string) {
	m.runs.WithLabelValues(status).Inc()
}

// noopRetentionMetrics is used when metrics are disabled.
type noopRetentionMetrics struct{}

func (noopRetentionMetrics) RecordProcessed(string)         {}
func (noopRetentionMetrics) BackendMutation(string, string) {}
func (noopRetentionMetrics) BytesFreed(uint64)              {}
func (noopRetentionMetrics) DuplicateSkipped()              {}
func (noopRetentionMetrics) RunCompleted(string)            {}
