// Package metrics provides Prometheus metrics for the fixturecast service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Breaker state values exported on the breaker_state gauge.
const (
	BreakerClosed   = 0
	BreakerOpen     = 1
	BreakerHalfOpen = 2
)

// Manager manages all Prometheus metrics for the fixturecast service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Upstream client
	upstreamRequests        *prometheus.CounterVec
	upstreamRequestDuration *prometheus.HistogramVec
	upstreamRetries         *prometheus.CounterVec
	upstreamFallbacks       *prometheus.CounterVec
	breakerState            prometheus.Gauge
	breakerTransitions      *prometheus.CounterVec

	// Cache
	cacheHits      *prometheus.CounterVec
	cacheMisses    prometheus.Counter
	cacheEvictions *prometheus.CounterVec
	cacheEntries   prometheus.Gauge

	// Prediction engine
	predictions       *prometheus.CounterVec
	predictionLatency *prometheus.HistogramVec
	modelErrors       prometheus.Counter
	featureErrors     prometheus.Counter

	// Ingestion tracker
	ingestionEvents   *prometheus.CounterVec
	ingestionDuration *prometheus.HistogramVec
	ingestionRecords  *prometheus.CounterVec
	ingestionOpen     prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue Metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker Metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	errorRateByComponent *prometheus.CounterVec
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
		namespace:        "fixturecast",
		subsystem:        "",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
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

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.upstreamRequests = m.counterVec("upstream_requests_total",
		"Outbound upstream requests by endpoint class and outcome", "class", "outcome")
	m.upstreamRequestDuration = m.histogramVec("upstream_request_duration_milliseconds",
		"Upstream request duration in milliseconds", "class")
	m.upstreamRetries = m.counterVec("upstream_retries_total",
		"Upstream retry attempts by endpoint class", "class")
	m.upstreamFallbacks = m.counterVec("upstream_fallbacks_total",
		"Fetches answered from a fallback source", "source")
	m.breakerState = m.gauge("breaker_state",
		"Circuit breaker state (0 closed, 1 open, 2 half-open)")
	m.breakerTransitions = m.counterVec("breaker_transitions_total",
		"Circuit breaker state transitions", "from", "to")

	m.cacheHits = m.counterVec("cache_hits_total", "Fresh cache hits by layer", "layer")
	m.cacheMisses = m.counter("cache_misses_total", "Cache misses across all layers")
	m.cacheEvictions = m.counterVec("cache_evictions_total", "Cache evictions by reason", "reason")
	m.cacheEntries = m.gauge("cache_entries", "Entries held in the in-memory cache layer")

	m.predictions = m.counterVec("predictions_total", "Predictions produced by probability source", "source")
	m.predictionLatency = m.histogramVec("prediction_latency_milliseconds",
		"Prediction latency in milliseconds by probability source", "source")
	m.modelErrors = m.counter("model_errors_total", "Model service calls that failed after retries")
	m.featureErrors = m.counter("feature_errors_total", "Feature retrieval failures")

	m.ingestionEvents = m.counterVec("ingestion_events_total",
		"Terminal ingestion events by source and status", "source", "status")
	m.ingestionDuration = m.histogramVec("ingestion_duration_milliseconds",
		"Ingestion duration in milliseconds", "source")
	m.ingestionRecords = m.counterVec("ingestion_records_written_total",
		"Records written by ingestion units", "source")
	m.ingestionOpen = m.gauge("ingestion_open_events", "Ingestion events begun but not finished")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.queueSize = m.gauge("queue_size", "Current size of the sync job queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of jobs enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue errors")

	m.workerCount = m.gauge("worker_count", "Configured number of sync workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of workers currently running a job")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Worker job processing latency in milliseconds")
	m.workerErrorRate = m.counter("worker_errors_total", "Total number of failed sync jobs")

	m.errorRateByComponent = m.counterVec("errors_by_component_total",
		"Total number of errors by component", "component", "error_type")
}

// RecordUpstreamRequest counts one outbound attempt and its latency.
func RecordUpstreamRequest(class, outcome string, latencyMs float64) {
	globalManager.upstreamRequests.WithLabelValues(class, outcome).Inc()
	globalManager.upstreamRequestDuration.WithLabelValues(class).Observe(latencyMs)
}

// RecordUpstreamRetry increments the retry counter.
func RecordUpstreamRetry(class string) {
	globalManager.upstreamRetries.WithLabelValues(class).Inc()
}

// RecordFallback records a fetch answered from stale, synthetic or empty data.
func RecordFallback(source string) {
	globalManager.upstreamFallbacks.WithLabelValues(source).Inc()
}

// UpdateBreakerState sets the breaker gauge.
func UpdateBreakerState(state int) {
	globalManager.breakerState.Set(float64(state))
}

// RecordBreakerTransition counts a state change.
func RecordBreakerTransition(from, to string) {
	globalManager.breakerTransitions.WithLabelValues(from, to).Inc()
}

// RecordCacheHit increments the hit counter for a cache layer.
func RecordCacheHit(layer string) {
	globalManager.cacheHits.WithLabelValues(layer).Inc()
}

// RecordCacheMiss increments the miss counter.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// RecordCacheEviction records evicted entries.
func RecordCacheEviction(reason string, n int) {
	globalManager.cacheEvictions.WithLabelValues(reason).Add(float64(n))
}

// UpdateCacheEntries sets the in-memory cache size.
func UpdateCacheEntries(n int) {
	globalManager.cacheEntries.Set(float64(n))
}

// RecordPrediction records a produced prediction.
func RecordPrediction(source string, latencyMs float64) {
	globalManager.predictions.WithLabelValues(source).Inc()
	globalManager.predictionLatency.WithLabelValues(source).Observe(latencyMs)
}

// RecordModelError increments the model failure counter.
func RecordModelError() {
	globalManager.modelErrors.Inc()
}

// RecordFeatureError increments the feature failure counter.
func RecordFeatureError() {
	globalManager.featureErrors.Inc()
}

// RecordIngestionEvent records a terminal ingestion transition.
func RecordIngestionEvent(source, status string, durationMs float64, records int) {
	globalManager.ingestionEvents.WithLabelValues(source, status).Inc()
	globalManager.ingestionDuration.WithLabelValues(source).Observe(durationMs)
	if records > 0 {
		globalManager.ingestionRecords.WithLabelValues(source).Add(float64(records))
	}
}

// UpdateIngestionOpen sets the number of unfinished ingestion events.
func UpdateIngestionOpen(n int) {
	globalManager.ingestionOpen.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
