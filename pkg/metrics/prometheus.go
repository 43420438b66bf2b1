// Package metrics provides Prometheus metrics for the follicle assessment service.
package metrics

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
	msPerNanosecond        = 1e-6
)

// riskScoreBuckets cover the closed score range in tenths.
var riskScoreBuckets = []float64{10, 20, 25, 30, 40, 50, 60, 70, 80, 90, 100} //nolint:gochecknoglobals

// Manager manages all Prometheus metrics for the follicle service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Assessment metrics
	assessments          *prometheus.CounterVec
	assessmentsDuplicate prometheus.Counter
	assessmentErrors     *prometheus.CounterVec
	engineLatency        prometheus.Histogram
	riskScores           prometheus.Histogram

	// External signal metrics
	signalRequests *prometheus.CounterVec
	signalFallback *prometheus.CounterVec
	signalLatency  prometheus.Histogram

	// Queue metrics
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueue           prometheus.Counter
	queueDequeue           prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Store metrics
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimited         *prometheus.CounterVec
	authFailures        prometheus.Counter

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
	lastPauseTotalNs     uint64
}

// global pairs the process-wide manager with the registry it writes to.
// The registry is custom to avoid default Go metrics.
type global struct {
	manager  *Manager
	registry *prometheus.Registry
}

var current atomic.Pointer[global] //nolint:gochecknoglobals // singleton metrics manager

func init() { //nolint:gochecknoinits // global metrics setup
	Configure()
}

// Configure replaces the process-wide manager with one built from opts on a
// fresh registry. Call it at startup before serving the registry; metrics
// recorded earlier are not carried over.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	opts = append(opts, WithPrometheusRegistry(registry))
	current.Store(&global{manager: NewManager(opts...), registry: registry})
}

func globalManager() *Manager {
	return current.Load().manager
}

// NewManager creates a new metrics manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "follicle",
		subsystem:        "assessment",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)

	m.assessments = auto.NewCounterVec(
		m.counterOpts("assessments_total", "Completed assessments by risk level and report source"),
		[]string{"risk_level", "source"},
	)
	m.assessmentsDuplicate = auto.NewCounter(
		m.counterOpts("assessments_duplicate_total", "Assessments rejected by idempotency key"),
	)
	m.assessmentErrors = auto.NewCounterVec(
		m.counterOpts("assessment_errors_total", "Failed assessments by stage"),
		[]string{"stage"},
	)
	m.engineLatency = auto.NewHistogram(
		m.histogramOpts("engine_latency_milliseconds", "Rule engine latency in milliseconds", nil),
	)
	m.riskScores = auto.NewHistogram(
		m.histogramOpts("risk_score", "Distribution of final risk scores", riskScoreBuckets),
	)

	m.signalRequests = auto.NewCounterVec(
		m.counterOpts("signal_requests_total", "External predictor calls by outcome"),
		[]string{"outcome"},
	)
	m.signalFallback = auto.NewCounterVec(
		m.counterOpts("signal_fallback_total", "Assessments that fell back to rules only, by reason"),
		[]string{"reason"},
	)
	m.signalLatency = auto.NewHistogram(
		m.histogramOpts("signal_latency_milliseconds", "External predictor latency in milliseconds", nil),
	)

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Current number of queued assessment jobs"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Queue size / capacity"))
	m.queueEnqueue = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Jobs enqueued"))
	m.queueDequeue = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Rejected enqueues"))
	m.queueProcessingLatency = auto.NewHistogram(
		m.histogramOpts("queue_processing_latency_milliseconds", "Time from enqueue to completion", nil),
	)

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Configured worker goroutines"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Workers currently running a job"))
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogramOpts("worker_processing_latency_milliseconds", "Worker job latency in milliseconds", nil),
	)
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Jobs that failed in a worker"))

	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("store_latency_milliseconds", "Store operation latency in milliseconds", nil),
		[]string{"driver", "operation"},
	)
	m.storeErrors = auto.NewCounterVec(
		m.counterOpts("store_errors_total", "Store operation failures"),
		[]string{"driver", "operation"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", nil),
		[]string{"endpoint", "method", "status_code"},
	)
	m.rateLimited = auto.NewCounterVec(
		m.counterOpts("http_rate_limited_total", "Requests rejected by the rate limiter"),
		[]string{"endpoint"},
	)
	m.authFailures = auto.NewCounter(m.counterOpts("http_auth_failures_total", "Requests rejected by auth"))

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component"),
		[]string{"component", "error_type"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts(
		"system_gc_pause_time_milliseconds", "GC pause time between samples in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	))
}

// sampleSystem records one runtime sample.
func (m *Manager) sampleSystem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.systemMemoryUsage.Set(float64(ms.HeapInuse))
	m.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
	if ms.PauseTotalNs > m.lastPauseTotalNs {
		m.systemGCPauseTime.Observe(float64(ms.PauseTotalNs-m.lastPauseTotalNs) * msPerNanosecond)
	}
	m.lastPauseTotalNs = ms.PauseTotalNs
}

// CollectSystem samples runtime metrics every refresh interval until ctx is done.
func CollectSystem(ctx context.Context) {
	m := globalManager()
	t := time.NewTicker(m.refreshInterval)
	defer t.Stop()
	m.sampleSystem()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.sampleSystem()
		}
	}
}

// RecordAssessment counts a completed assessment and its final score.
func RecordAssessment(riskLevel, source string, riskScore int) {
	globalManager().assessments.WithLabelValues(riskLevel, source).Inc()
	globalManager().riskScores.Observe(float64(riskScore))
}

// RecordAssessmentDuplicate counts an idempotency key replay.
func RecordAssessmentDuplicate() {
	globalManager().assessmentsDuplicate.Inc()
}

// RecordAssessmentError counts a failed assessment at the given stage.
func RecordAssessmentError(stage string) {
	globalManager().assessmentErrors.WithLabelValues(stage).Inc()
}

// RecordEngineLatency records rule engine latency in milliseconds.
func RecordEngineLatency(latencyMs float64) {
	globalManager().engineLatency.Observe(latencyMs)
}

// RecordSignalRequest counts a predictor call outcome and its latency.
func RecordSignalRequest(outcome string, latencyMs float64) {
	globalManager().signalRequests.WithLabelValues(outcome).Inc()
	globalManager().signalLatency.Observe(latencyMs)
}

// RecordSignalFallback counts a rules-only fallback.
func RecordSignalFallback(reason string) {
	globalManager().signalFallback.WithLabelValues(reason).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager().queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager().queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager().queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager().queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager().queueDequeue.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager().queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records enqueue-to-completion latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager().queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager().workerCount.Set(float64(count))
}

// AddWorkerActive adjusts the active worker gauge by delta.
func AddWorkerActive(delta int) {
	globalManager().workerActiveCount.Add(float64(delta))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager().workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager().workerErrors.Inc()
}

// RecordStoreOperation records a store call's latency and whether it failed.
func RecordStoreOperation(driver, operation string, latencyMs float64, failed bool) {
	globalManager().storeLatency.WithLabelValues(driver, operation).Observe(latencyMs)
	if failed {
		globalManager().storeErrors.WithLabelValues(driver, operation).Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager().httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager().httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRateLimited counts a request rejected by the limiter.
func RecordRateLimited(endpoint string) {
	globalManager().rateLimited.WithLabelValues(endpoint).Inc()
}

// RecordAuthFailure counts a request rejected by auth.
func RecordAuthFailure() {
	globalManager().authFailures.Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager().errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager().errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return current.Load().registry
}
