// Package metrics provides Prometheus metrics for the matchpool service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ledger
	settlements   *prometheus.CounterVec
	settledVolume prometheus.Counter
	undos         *prometheus.CounterVec
	substitutions *prometheus.CounterVec
	replays       *prometheus.CounterVec
	replayLatency prometheus.Histogram
	notifications prometheus.Counter
	sessions      prometheus.Gauge

	// Live feed
	feedMessages    *prometheus.CounterVec
	feedParseErrors prometheus.Counter
	feedDuplicates  prometheus.Counter
	feedReconnects  prometheus.Counter
	feedUnresolved  *prometheus.CounterVec

	// Queue and worker
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec
	workerLatency      prometheus.Histogram
	workerErrors       prometheus.Counter

	// Store
	storeOps *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

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

// NewManager creates a new metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "matchpool",
		subsystem:        "ledger",
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
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
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

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() {
	m.settlements = m.counterVec("settlements_total", "Settlement attempts by outcome", "outcome")
	m.settledVolume = m.counter("settled_volume_total", "Sum of positive balance deltas moved by settlements")
	m.undos = m.counterVec("undo_total", "Undo requests by outcome", "outcome")
	m.substitutions = m.counterVec("substitutions_total", "Substitutions by source and outcome", "source", "outcome")
	m.replays = m.counterVec("replays_total", "Balance recalculations by policy", "policy")
	m.replayLatency = m.histogram("replay_latency_milliseconds", "Duration of a full balance recalculation")
	m.notifications = m.counter("observer_notifications_total", "State-changed notifications delivered to observers")
	m.sessions = m.gauge("sessions_active", "Number of sessions held in memory")

	m.feedMessages = m.counterVec("feed_messages_total", "Live feed messages received by type", "type")
	m.feedParseErrors = m.counter("feed_parse_errors_total", "Live feed messages that could not be decoded")
	m.feedDuplicates = m.counter("feed_duplicates_total", "Live feed notifications dropped as duplicates")
	m.feedReconnects = m.counter("feed_reconnects_total", "Live feed reconnect attempts")
	m.feedUnresolved = m.counterVec("feed_unresolved_total", "Live feed notifications whose players could not be resolved", "kind")

	m.queueSize = m.gauge("queue_size", "Current number of queued feed notifications")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum feed queue capacity")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Total number of notifications enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Total number of notifications dequeued")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Enqueue failures by reason", "reason")
	m.workerLatency = m.histogram("worker_processing_latency_milliseconds", "Time spent applying one feed notification")
	m.workerErrors = m.counter("worker_errors_total", "Feed notifications the worker failed to apply")

	m.storeOps = m.counterVec("store_operations_total", "Snapshot store operations by op and outcome", "op", "outcome")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
}

// Ledger.

// RecordSettlement counts a settlement attempt with its outcome label.
func RecordSettlement(outcome string) {
	globalManager.settlements.WithLabelValues(outcome).Inc()
}

// RecordSettledVolume adds the amount moved by one settlement.
func RecordSettledVolume(amount float64) {
	if amount > 0 {
		globalManager.settledVolume.Add(amount)
	}
}

// RecordUndo counts an undo request with its outcome label.
func RecordUndo(outcome string) {
	globalManager.undos.WithLabelValues(outcome).Inc()
}

// RecordSubstitution counts a substitution by source (manual, live) and outcome.
func RecordSubstitution(source, outcome string) {
	globalManager.substitutions.WithLabelValues(source, outcome).Inc()
}

// RecordReplay counts a recalculation and its duration.
func RecordReplay(policy string, latencyMs float64) {
	globalManager.replays.WithLabelValues(policy).Inc()
	globalManager.replayLatency.Observe(latencyMs)
}

// RecordNotification counts a delivered state-changed notification.
func RecordNotification() {
	globalManager.notifications.Inc()
}

// UpdateSessions sets the number of live sessions.
func UpdateSessions(count int) {
	globalManager.sessions.Set(float64(count))
}

// Live feed.

// RecordFeedMessage counts a received feed message by wire type.
func RecordFeedMessage(msgType string) {
	globalManager.feedMessages.WithLabelValues(msgType).Inc()
}

// RecordFeedParseError counts an undecodable feed message.
func RecordFeedParseError() {
	globalManager.feedParseErrors.Inc()
}

// RecordFeedDuplicate counts a notification dropped by the dedupe window.
func RecordFeedDuplicate() {
	globalManager.feedDuplicates.Inc()
}

// RecordFeedReconnect counts a reconnect attempt.
func RecordFeedReconnect() {
	globalManager.feedReconnects.Inc()
}

// RecordFeedUnresolved counts a notification with unmapped external ids.
func RecordFeedUnresolved(kind string) {
	globalManager.feedUnresolved.WithLabelValues(kind).Inc()
}

// Queue and worker.

// UpdateQueueSize sets the current queue length.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts an enqueue failure.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordWorkerProcessingLatency records the time spent on one notification.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// Store.

// RecordStoreOperation counts a snapshot store call.
func RecordStoreOperation(op, outcome string) {
	globalManager.storeOps.WithLabelValues(op, outcome).Inc()
}

// HTTP.

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// System.

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
