// Package metrics provides Prometheus metrics for the riskwatch service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Pipeline metrics
	batchesReceived   prometheus.Counter
	batchDocuments    prometheus.Histogram
	documentsSkipped  prometheus.Counter
	pointsPublished   prometheus.Counter
	seriesLength      prometheus.Gauge
	flattenLatency    prometheus.Histogram
	latestScore       prometheus.Gauge
	pointsByRisk      *prometheus.CounterVec
	emptyBatches      prometheus.Counter
	duplicateBatches  prometheus.Counter
	connected         prometheus.Gauge
	connectionChanges *prometheus.CounterVec
	fatalErrors       prometheus.Counter
	sourceErrors      *prometheus.CounterVec

	// Queue metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "riskwatch",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.batchesReceived = m.counter("batches_received_total", "Total number of document batches delivered by the source")
	m.batchDocuments = m.histogram("batch_documents", "Documents per delivered batch", prometheus.LinearBuckets(0, 2, 10))
	m.documentsSkipped = m.counter("documents_skipped_total", "Documents without samples on the scored channel")
	m.pointsPublished = m.counter("points_published_total", "Scored points published to the view")
	m.seriesLength = m.gauge("series_length", "Length of the most recently published series")
	m.flattenLatency = m.histogram("flatten_latency_milliseconds", "Time spent flattening one batch", m.histogramBuckets)
	m.latestScore = m.gauge("latest_score", "Most recent normalized score")
	m.pointsByRisk = m.counterVec("points_by_risk_total", "Published points by risk level", "risk")
	m.emptyBatches = m.counter("empty_batches_total", "Batches that produced no points")
	m.duplicateBatches = m.counter("duplicate_batches_total", "Pushed batches dropped as duplicates")
	m.connected = m.gauge("source_connected", "1 while the source subscription is connected")
	m.connectionChanges = m.counterVec("connection_changes_total", "Connectivity transitions reported by the source", "state")
	m.fatalErrors = m.counter("fatal_errors_total", "Fatal subscription errors")
	m.sourceErrors = m.counterVec("source_errors_total", "Source errors by kind", "source", "kind")

	m.queueSize = m.gauge("queue_size", "Current number of queued subscription events")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the subscription event queue")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Subscription events enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Subscription events dequeued")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Rejected enqueues by reason", "reason")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.httpErrors = m.counterVec("http_errors_total", "HTTP error responses by endpoint and type", "endpoint", "method", "error_type")
}

// RecordBatch records a delivered batch and its size.
func RecordBatch(documents int) {
	globalManager.batchesReceived.Inc()
	globalManager.batchDocuments.Observe(float64(documents))
}

// RecordDocumentsSkipped counts documents that produced no samples.
func RecordDocumentsSkipped(n int) {
	if n > 0 {
		globalManager.documentsSkipped.Add(float64(n))
	}
}

// RecordFlattenLatency records the time spent flattening a batch.
func RecordFlattenLatency(latencyMs float64) {
	globalManager.flattenLatency.Observe(latencyMs)
}

// RecordSeries records a published series and its newest score.
func RecordSeries(length int, latestScore float64) {
	globalManager.pointsPublished.Add(float64(length))
	globalManager.seriesLength.Set(float64(length))
	globalManager.latestScore.Set(latestScore)
}

// RecordPointRisk counts a published point by risk level.
func RecordPointRisk(risk string) {
	globalManager.pointsByRisk.WithLabelValues(risk).Inc()
}

// RecordEmptyBatch counts a batch that produced no points.
func RecordEmptyBatch() {
	globalManager.emptyBatches.Inc()
}

// RecordDuplicateBatch counts a pushed batch rejected as a duplicate.
func RecordDuplicateBatch() {
	globalManager.duplicateBatches.Inc()
}

// UpdateConnected records the current connectivity.
func UpdateConnected(connected bool) {
	state := "down"
	v := 0.0
	if connected {
		state = "up"
		v = 1
	}
	globalManager.connected.Set(v)
	globalManager.connectionChanges.WithLabelValues(state).Inc()
}

// RecordFatalError counts a fatal subscription error.
func RecordFatalError() {
	globalManager.fatalErrors.Inc()
}

// RecordSourceError counts a recoverable source error.
func RecordSourceError(source, kind string) {
	globalManager.sourceErrors.WithLabelValues(source, kind).Inc()
}

// UpdateQueueSize sets the current queue depth.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an accepted enqueue.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue counts a dequeue.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordHTTPError counts an HTTP error response.
func RecordHTTPError(endpoint, method, errorType string) {
	globalManager.httpErrors.WithLabelValues(endpoint, method, errorType).Inc()
}

var runtimeOnce sync.Once //nolint:gochecknoglobals // guards runtime collector registration

// RegisterRuntimeCollectors adds the Go runtime and process collectors to the
// service registry. Repeated calls are no-ops.
func RegisterRuntimeCollectors() {
	runtimeOnce.Do(func() {
		customRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// GetRegistry returns the registry the global manager reports to.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
