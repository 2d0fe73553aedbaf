// Package metrics provides Prometheus metrics for the filmport migration pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Source side
	rowsRead     *prometheus.CounterVec
	rowsRejected *prometheus.CounterVec

	// Transcoding
	recordsTranscoded *prometheus.CounterVec
	queueDepth        prometheus.Gauge
	workersActive     prometheus.Gauge

	// Destination side
	batchesFlushed *prometheus.CounterVec
	rowsInserted   *prometheus.CounterVec
	rowsSkipped    *prometheus.CounterVec
	flushLatency   *prometheus.HistogramVec

	// Run level
	tableDuration *prometheus.HistogramVec
	runOutcomes   *prometheus.CounterVec

	// Verification
	verifyFailures *prometheus.CounterVec

	// Operational HTTP listener
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "filmport",
		subsystem:        "migration",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.rowsRead = m.counterVec("rows_read_total", "Rows read from the source store", "table")
	m.rowsRejected = m.counterVec("rows_rejected_total", "Rows rejected before reaching the destination", "table", "reason")

	m.recordsTranscoded = m.counterVec("records_transcoded_total", "Rows converted into canonical records", "table")
	m.queueDepth = m.gauge("queue_depth", "Raw rows waiting for a transcoding worker")
	m.workersActive = m.gauge("workers_active", "Transcoding workers currently running")

	m.batchesFlushed = m.counterVec("batches_flushed_total", "Bulk insert statements issued", "table")
	m.rowsInserted = m.counterVec("rows_inserted_total", "Rows inserted into the destination store", "table")
	m.rowsSkipped = m.counterVec("rows_skipped_total", "Rows skipped by insert-or-ignore", "table")
	m.flushLatency = m.histogramVec("flush_latency_milliseconds", "Latency of one bulk insert", m.histogramBuckets, "table")

	m.tableDuration = m.histogramVec("table_duration_seconds", "Time spent migrating one table",
		[]float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900}, "table", "status")
	m.runOutcomes = m.counterVec("runs_total", "Completed runs by command and outcome", "command", "outcome")

	m.verifyFailures = m.counterVec("verification_failures_total", "Verification failures by kind", "table", "kind")

	m.httpRequests = m.counterVec("http_requests_total", "Requests served by the operational listener", "endpoint", "method", "status")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "Latency of operational requests",
		m.histogramBuckets, "endpoint", "method")
}

// RecordRowRead increments the rows read counter.
func RecordRowRead(table string) {
	globalManager.rowsRead.WithLabelValues(table).Inc()
}

// RecordRowRejected increments the rejected rows counter.
func RecordRowRejected(table, reason string) {
	globalManager.rowsRejected.WithLabelValues(table, reason).Inc()
}

// RecordRecordTranscoded increments the transcoded records counter.
func RecordRecordTranscoded(table string) {
	globalManager.recordsTranscoded.WithLabelValues(table).Inc()
}

// UpdateQueueDepth sets the number of rows waiting for a worker.
func UpdateQueueDepth(depth int) {
	globalManager.queueDepth.Set(float64(depth))
}

// AddWorkersActive adjusts the running worker gauge by delta.
func AddWorkersActive(delta int) {
	globalManager.workersActive.Add(float64(delta))
}

// RecordFlush records one bulk insert: rows sent, rows inserted and latency.
func RecordFlush(table string, sent, inserted int64, latencyMs float64) {
	globalManager.batchesFlushed.WithLabelValues(table).Inc()
	globalManager.rowsInserted.WithLabelValues(table).Add(float64(inserted))
	if skipped := sent - inserted; skipped > 0 {
		globalManager.rowsSkipped.WithLabelValues(table).Add(float64(skipped))
	}
	globalManager.flushLatency.WithLabelValues(table).Observe(latencyMs)
}

// RecordTableDuration records how long one table took and how it ended.
func RecordTableDuration(table, status string, seconds float64) {
	globalManager.tableDuration.WithLabelValues(table, status).Observe(seconds)
}

// RecordRunOutcome increments the run outcome counter.
func RecordRunOutcome(command, outcome string) {
	globalManager.runOutcomes.WithLabelValues(command, outcome).Inc()
}

// RecordVerificationFailure increments the verification failure counter.
func RecordVerificationFailure(table, kind string) {
	globalManager.verifyFailures.WithLabelValues(table, kind).Inc()
}

// RecordHTTPRequest records one request served by the operational listener.
func RecordHTTPRequest(endpoint, method, status string, durationMs float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method).Observe(durationMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
