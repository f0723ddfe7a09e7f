// Package metrics provides Prometheus metrics for the codeboard sync and ranking service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 5 * time.Second
)

// Sync outcomes used as the "outcome" label.
const (
	OutcomeSuccess   = "success"
	OutcomeTransient = "transient"
	OutcomeFatal     = "fatal"
	OutcomeCanceled  = "canceled"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Sync metrics
	syncAttempts  *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec
	upstreamCalls *prometheus.HistogramVec
	suspensions   *prometheus.CounterVec
	reactivations *prometheus.CounterVec
	staleTasks    prometheus.Counter
	notifications *prometheus.CounterVec

	// In-flight tracking
	tasksDuplicate prometheus.Counter
	inFlightTasks  prometheus.Gauge

	// Queue metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Ranking metrics
	rankingDuration  prometheus.Histogram
	rankingRuns      prometheus.Counter
	rankingErrors    prometheus.Counter
	rankingCoalesced prometheus.Counter
	rankedStudents   prometheus.Gauge
	rankingLastUnix  prometheus.Gauge

	// Scheduler metrics
	schedulerRuns *prometheus.CounterVec

	// Store and cache metrics
	storedStudents prometheus.Gauge
	storedLinks    *prometheus.GaugeVec
	storeLatency   *prometheus.HistogramVec
	cacheLookups   *prometheus.CounterVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "codeboard",
		subsystem:        "sync",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}
	if !m.enabled {
		// collectors stay usable but are never exposed
		m.registry = prometheus.NewRegistry()
	}

	m.initializeMetrics()

	return m
}

// RefreshInterval is how often periodic gauge updaters should run.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels, Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.customLabels, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.syncAttempts = m.counterVec("attempts_total", "Adapter fetch attempts by platform and outcome", "platform", "outcome")
	m.fetchLatency = m.histogramVec("fetch_latency_milliseconds", "Adapter fetch latency per attempt in milliseconds", "platform")
	m.upstreamCalls = m.histogramVec("upstream_request_latency_milliseconds",
		"Latency of single HTTP requests to a platform in milliseconds", "platform", "status_class")
	m.suspensions = m.counterVec("suspensions_total", "Links moved to suspended", "platform")
	m.reactivations = m.counterVec("reactivations_total", "Suspended links reactivated by a successful sync", "platform")
	m.staleTasks = m.counter("stale_tasks_total", "Sync results dropped because the link changed meanwhile")
	m.notifications = m.counterVec("notifications_total", "Notifications emitted by status tag", "status_tag")

	m.tasksDuplicate = m.counter("tasks_duplicate_total", "Tasks skipped because the same link was already in flight")
	m.inFlightTasks = m.gauge("tasks_in_flight", "Tasks queued or running")

	m.queueSize = m.gauge("queue_size", "Current size of the task queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of tasks enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of tasks dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue errors")

	m.workerCount = m.gauge("worker_count", "Configured number of workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of workers currently running a task")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Time spent on one task including retries")
	m.workerErrorRate = m.counter("worker_errors_total", "Total number of task handler errors")

	m.rankingDuration = m.histogram("ranking_duration_milliseconds", "Ranking recompute duration in milliseconds")
	m.rankingRuns = m.counter("ranking_runs_total", "Completed ranking recomputes")
	m.rankingErrors = m.counter("ranking_errors_total", "Failed ranking recomputes")
	m.rankingCoalesced = m.counter("ranking_requests_coalesced_total", "Recompute requests merged into a pending run")
	m.rankedStudents = m.gauge("ranked_students", "Students in the last computed ranking")
	m.rankingLastUnix = m.gauge("ranking_last_unix", "Unix timestamp of the last ranking recompute")

	m.schedulerRuns = m.counterVec("scheduler_runs_total", "Scheduled job runs by job and outcome", "job", "outcome")

	m.storedStudents = m.gauge("stored_students", "Students known to the store")
	m.storedLinks = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "stored_links",
		Help: "Platform links by status", ConstLabels: m.customLabels,
	}, []string{"status"})
	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store operation latency in milliseconds", "operation")
	m.cacheLookups = m.counterVec("cache_lookups_total", "Ranking cache lookups by result", "result")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		"endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component",
		"component", "error_type")
}

// RecordSyncAttempt counts one adapter fetch attempt.
func RecordSyncAttempt(platform, outcome string) {
	globalManager.syncAttempts.WithLabelValues(platform, outcome).Inc()
}

// RecordFetchLatency records the latency of one adapter fetch attempt, which
// may span several HTTP requests.
func RecordFetchLatency(platform string, latencyMs float64) {
	globalManager.fetchLatency.WithLabelValues(platform).Observe(latencyMs)
}

// RecordUpstreamRequest records one HTTP request to a platform. statusClass
// is "2xx".."5xx", or "error" when no response arrived.
func RecordUpstreamRequest(platform, statusClass string, latencyMs float64) {
	globalManager.upstreamCalls.WithLabelValues(platform, statusClass).Observe(latencyMs)
}

// StatusClass buckets an HTTP status code for the status_class label.
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "error"
	}
	return string(rune('0'+code/100)) + "xx"
}

// RecordSuspension counts a link suspension.
func RecordSuspension(platform string) {
	globalManager.suspensions.WithLabelValues(platform).Inc()
}

// RecordReactivation counts a link reactivation.
func RecordReactivation(platform string) {
	globalManager.reactivations.WithLabelValues(platform).Inc()
}

// RecordStaleTask counts a dropped stale result.
func RecordStaleTask() {
	globalManager.staleTasks.Inc()
}

// RecordNotification counts an emitted notification.
func RecordNotification(statusTag string) {
	globalManager.notifications.WithLabelValues(statusTag).Inc()
}

// RecordTaskDuplicate counts a task skipped by the in-flight tracker.
func RecordTaskDuplicate() {
	globalManager.tasksDuplicate.Inc()
}

// UpdateInFlightTasks sets the in-flight task gauge.
func UpdateInFlightTasks(count int64) {
	globalManager.inFlightTasks.Set(float64(count))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
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
func UpdateWorkerActiveCount(count int64) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records the time spent on one task.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// RecordRankingRun records a completed recompute.
func RecordRankingRun(duration time.Duration, students int) {
	globalManager.rankingDuration.Observe(float64(duration.Milliseconds()))
	globalManager.rankingRuns.Inc()
	globalManager.rankedStudents.Set(float64(students))
	globalManager.rankingLastUnix.Set(float64(time.Now().Unix()))
}

// RecordRankingError counts a failed recompute.
func RecordRankingError() {
	globalManager.rankingErrors.Inc()
}

// RecordRankingCoalesced counts a recompute request merged into a pending one.
func RecordRankingCoalesced() {
	globalManager.rankingCoalesced.Inc()
}

// RecordSchedulerRun counts a scheduled job run.
func RecordSchedulerRun(job, outcome string) {
	globalManager.schedulerRuns.WithLabelValues(job, outcome).Inc()
}

// UpdateStoredStudents sets the student gauge.
func UpdateStoredStudents(count int) {
	globalManager.storedStudents.Set(float64(count))
}

// UpdateStoredLinks sets the link gauge of one status.
func UpdateStoredLinks(status string, count int) {
	globalManager.storedLinks.WithLabelValues(status).Set(float64(count))
}

// RecordStoreLatency records the latency of one store operation.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordCacheLookup counts a ranking cache lookup ("hit", "miss" or "error").
func RecordCacheLookup(result string) {
	globalManager.cacheLookups.WithLabelValues(result).Inc()
}

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
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// Since returns the elapsed milliseconds since start, for latency helpers.
func Since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

// RefreshInterval returns the gauge refresh interval of the global manager.
func RefreshInterval() time.Duration {
	return globalManager.RefreshInterval()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
