// Package metrics provides Prometheus metrics for the turnout service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission outcomes.
const (
	OutcomeCommitted = "committed"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Voting
	submissions        *prometheus.CounterVec
	reconcileConflicts prometheus.Counter
	commitLatency      prometheus.Histogram
	wizardTransitions  *prometheus.CounterVec
	activeSessions     prometheus.Gauge

	// Store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec
	lockWait     prometheus.Histogram

	// Writer queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Writers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
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
		namespace:        "turnout",
		subsystem:        "voting",
		histogramBuckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogram(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.histogramBuckets}
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.submissions = auto.NewCounterVec(m.counter("submissions_total", "Submissions by outcome"), []string{"outcome"})
	m.reconcileConflicts = auto.NewCounter(m.counter("reconcile_conflicts_total", "Writes retried because the table changed since the snapshot"))
	m.commitLatency = auto.NewHistogram(m.histogram("commit_latency_milliseconds", "Time to reconcile and persist one submission"))
	m.wizardTransitions = auto.NewCounterVec(m.counter("wizard_transitions_total", "Wizard transitions by target state"), []string{"state"})
	m.activeSessions = auto.NewGauge(m.gauge("active_sessions", "Wizard sessions currently held"))

	m.storeLatency = auto.NewHistogramVec(m.histogram("store_latency_milliseconds", "Tabular store latency by sheet and operation"), []string{"sheet", "op"})
	m.storeErrors = auto.NewCounterVec(m.counter("store_errors_total", "Tabular store failures by sheet and operation"), []string{"sheet", "op"})
	m.lockWait = auto.NewHistogram(m.histogram("lock_wait_milliseconds", "Time spent acquiring the per-event lock"))

	m.queueSize = auto.NewGauge(m.gauge("queue_size", "Pending commit jobs"))
	m.queueCapacity = auto.NewGauge(m.gauge("queue_capacity", "Commit queue capacity"))
	m.queueEnqueue = auto.NewCounter(m.counter("queue_enqueue_total", "Commit jobs enqueued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counter("queue_enqueue_errors_total", "Commit jobs refused because the queue was full"))

	m.workerCount = auto.NewGauge(m.gauge("worker_count", "Running writer goroutines"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogram("worker_processing_latency_milliseconds", "Time a writer spends on one job"))
	m.workerErrors = auto.NewCounter(m.counter("worker_errors_total", "Jobs that finished with an error"))

	m.httpRequests = auto.NewCounterVec(m.counter("http_requests_total", "HTTP requests by route, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogram("http_request_duration_milliseconds", "HTTP request duration"), []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counter("errors_by_component_total", "Errors by component and code"), []string{"component", "code"})
}

// RecordSubmission counts a submission with the given outcome.
func RecordSubmission(outcome string) {
	globalManager.submissions.WithLabelValues(outcome).Inc()
}

// RecordReconcileConflict counts a version conflict on write.
func RecordReconcileConflict() {
	globalManager.reconcileConflicts.Inc()
}

// RecordCommitLatency records commit latency in milliseconds.
func RecordCommitLatency(latencyMs float64) {
	globalManager.commitLatency.Observe(latencyMs)
}

// RecordWizardTransition counts a transition into state.
func RecordWizardTransition(state string) {
	globalManager.wizardTransitions.WithLabelValues(state).Inc()
}

// UpdateActiveSessions sets the number of live sessions.
func UpdateActiveSessions(count int) {
	globalManager.activeSessions.Set(float64(count))
}

// RecordStoreOperation records a store call latency in milliseconds.
func RecordStoreOperation(sheet, op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(sheet, op).Observe(latencyMs)
}

// RecordStoreError counts a failed store call.
func RecordStoreError(sheet, op string) {
	globalManager.storeErrors.WithLabelValues(sheet, op).Inc()
}

// RecordLockWait records lock acquisition time in milliseconds.
func RecordLockWait(latencyMs float64) {
	globalManager.lockWait.Observe(latencyMs)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an accepted job.
func RecordQueueEnqueue() {
	globalManager.queueEnqueue.Inc()
}

// RecordQueueEnqueueError counts a refused job.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records job latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a failed job.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent counts an error raised by component.
func RecordErrorByComponent(component, code string) {
	globalManager.errorsByComponent.WithLabelValues(component, code).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
