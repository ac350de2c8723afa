package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the sync service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Sync pipeline
	jobsAccepted   prometheus.Counter
	jobsDuplicate  prometheus.Counter
	jobsProcessed  prometheus.Counter
	jobsFailed     prometheus.Counter
	recordsByState *prometheus.CounterVec

	// Payload
	payloadBytes       prometheus.Histogram
	payloadLatency     prometheus.Histogram
	payloadsDuplicate  prometheus.Counter
	submissionsTotal   *prometheus.CounterVec
	submissionsLatency prometheus.Histogram

	// Queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueRejected    prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram

	// Stores
	bestStorePlayers prometheus.Gauge
	bestStoreUpdates prometheus.Counter
	chartsLoaded     prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "chunisync",
		subsystem:        "sync",
		histogramBuckets: prometheus.DefBuckets,
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

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	m.jobsAccepted = m.counter("jobs_accepted_total", "Sync jobs accepted into the queue")
	m.jobsDuplicate = m.counter("jobs_duplicate_total", "Sync jobs rejected as duplicates by id")
	m.jobsProcessed = m.counter("jobs_processed_total", "Sync jobs that reached the submitter")
	m.jobsFailed = m.counter("jobs_failed_total", "Sync jobs that failed in the pipeline")
	m.recordsByState = m.counterVec("records_annotated_total",
		"Records annotated by outcome (rated, estimated, skipped)", "outcome")

	m.payloadBytes = m.histogram("payload_bytes", "Size of assembled payloads in bytes",
		prometheus.ExponentialBuckets(64, 2, 10))
	m.payloadLatency = m.histogram("payload_assembly_milliseconds",
		"Payload assembly latency in milliseconds", m.histogramBuckets)
	m.payloadsDuplicate = m.counter("payloads_duplicate_total",
		"Payloads skipped because an identical one was already submitted")
	m.submissionsTotal = m.counterVec("submissions_total", "Payload submissions by status", "status")
	m.submissionsLatency = m.histogram("submission_milliseconds",
		"Submission round-trip latency in milliseconds", m.histogramBuckets)

	m.queueSize = m.gauge("queue_size", "Current number of queued sync jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of queued sync jobs")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size divided by capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Sync jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Sync jobs dequeued")
	m.queueRejected = m.counter("queue_rejected_total", "Sync jobs rejected because the queue was full")

	m.workerCount = m.gauge("worker_count", "Configured number of workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Workers currently processing a job")
	m.workerProcessingLatency = m.histogram("worker_processing_milliseconds",
		"End to end job processing latency in milliseconds", m.histogramBuckets)

	m.bestStorePlayers = m.gauge("best_store_players", "Players tracked by the best-rating store")
	m.bestStoreUpdates = m.counter("best_store_updates_total", "Best-rating entries inserted or raised")
	m.chartsLoaded = m.gauge("charts_loaded", "Charts available in the chart store")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordJobAccepted increments the accepted sync jobs counter.
func RecordJobAccepted() { globalManager.jobsAccepted.Inc() }

// RecordJobDuplicate increments the duplicate sync jobs counter.
func RecordJobDuplicate() { globalManager.jobsDuplicate.Inc() }

// RecordJobProcessed increments the processed sync jobs counter.
func RecordJobProcessed() { globalManager.jobsProcessed.Inc() }

// RecordJobFailed increments the failed sync jobs counter.
func RecordJobFailed() { globalManager.jobsFailed.Inc() }

// RecordRecordsAnnotated adds n records annotated with the given outcome.
func RecordRecordsAnnotated(outcome string, n int) {
	if n > 0 {
		globalManager.recordsByState.WithLabelValues(outcome).Add(float64(n))
	}
}

// RecordPayloadBytes observes the size of an assembled payload.
func RecordPayloadBytes(n int) { globalManager.payloadBytes.Observe(float64(n)) }

// RecordPayloadLatency records payload assembly latency in milliseconds.
func RecordPayloadLatency(latencyMs float64) { globalManager.payloadLatency.Observe(latencyMs) }

// RecordPayloadDuplicate increments the duplicate payload counter.
func RecordPayloadDuplicate() { globalManager.payloadsDuplicate.Inc() }

// RecordSubmission records a submission outcome and its latency.
func RecordSubmission(status string, latencyMs float64) {
	globalManager.submissionsTotal.WithLabelValues(status).Inc()
	globalManager.submissionsLatency.Observe(latencyMs)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueRejected increments the full-queue rejection counter.
func RecordQueueRejected() { globalManager.queueRejected.Inc() }

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// UpdateBestStorePlayers sets the number of players in the best store.
func UpdateBestStorePlayers(count int) { globalManager.bestStorePlayers.Set(float64(count)) }

// RecordBestStoreUpdate increments the best store update counter.
func RecordBestStoreUpdate() { globalManager.bestStoreUpdates.Inc() }

// UpdateChartsLoaded sets the number of charts in the chart store.
func UpdateChartsLoaded(count int) { globalManager.chartsLoaded.Set(float64(count)) }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
