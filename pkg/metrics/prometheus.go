// Package metrics provides Prometheus metrics for the FocusFlow engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector used by the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Session lifecycle
	sessionsStarted     prometheus.Counter
	sessionsCompleted   prometheus.Counter
	sessionsInterrupted prometheus.Counter
	sessionsResumed     prometheus.Counter
	sessionsActive      prometheus.Gauge
	sessionDuration     prometheus.Histogram
	clockSkewClamps     prometheus.Counter

	// Heartbeat pipeline
	heartbeats          prometheus.Counter
	heartbeatDuplicates prometheus.Counter
	deltasApplied       prometheus.Counter
	deltaSeconds        prometheus.Counter

	// Queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueues    prometheus.Counter
	queueDequeues    prometheus.Counter
	queueRejections  prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter
	workerRetries           prometheus.Counter

	// Leaderboard store
	storeShardCount       prometheus.Gauge
	storeUsersPerShard    *prometheus.GaugeVec
	storeIncrementLatency prometheus.Histogram
	storeQueryLatency     prometheus.Histogram
	storeShardsPurged     prometheus.Counter
	storeSnapshotSaves    prometheus.Counter
	storeSnapshotLoads    prometheus.Counter

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors by component
	errorsByComponent *prometheus.CounterVec

	// Process health
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global manager on a custom registry, avoiding default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton metrics registry

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers all collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "focusflow",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // registers the full collector set
	auto := promauto.With(m.registry)

	m.sessionsStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "sessions_started_total",
		Help: "Total number of focus sessions started",
	})
	m.sessionsCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "sessions_completed_total",
		Help: "Total number of focus sessions completed",
	})
	m.sessionsInterrupted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "sessions_interrupted_total",
		Help: "Total number of focus-lost signals recorded",
	})
	m.sessionsResumed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "sessions_resumed_total",
		Help: "Total number of sessions restored from the durable store",
	})
	m.sessionsActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "sessions_active",
		Help: "Current number of active focus sessions",
	})
	m.sessionDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "session_duration_seconds",
		Help:    "Histogram of completed session durations in seconds",
		Buckets: []float64{60, 300, 600, 1200, 1800, 2700, 3600, 7200, 14400},
	})
	m.clockSkewClamps = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "clock_skew_clamps_total",
		Help: "Total number of resumed sessions with implausible elapsed time clamped to zero",
	})

	m.heartbeats = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "heartbeats_total",
		Help: "Total number of heartbeat ticks processed",
	})
	m.heartbeatDuplicates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "heartbeat_duplicates_total",
		Help: "Total number of duplicate heartbeat deltas dropped by the dedupe cache",
	})
	m.deltasApplied = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "deltas_applied_total",
		Help: "Total number of study-time increments applied to the leaderboard",
	})
	m.deltaSeconds = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "delta_seconds_total",
		Help: "Total study seconds credited across all shards",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_size",
		Help: "Current size of the heartbeat delta queue",
	})
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_capacity",
		Help: "Configured capacity of the heartbeat delta queue",
	})
	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_utilization",
		Help: "Queue fill ratio between 0 and 1",
	})
	m.queueEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_enqueues_total",
		Help: "Total number of deltas enqueued",
	})
	m.queueDequeues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_dequeues_total",
		Help: "Total number of deltas dequeued by workers",
	})
	m.queueRejections = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_rejections_total",
		Help: "Total number of deltas rejected due to backpressure or shutdown",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "worker_count",
		Help: "Number of delta workers",
	})
	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "worker_processing_latency_milliseconds",
		Help:    "Histogram of per-delta processing latency in milliseconds",
		Buckets: m.histogramBuckets,
	})
	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "worker_errors_total",
		Help: "Total number of delta applications that failed after retries",
	})
	m.workerRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "worker_retries_total",
		Help: "Total number of increment retries at the worker boundary",
	})

	m.storeShardCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "store_shard_count",
		Help: "Number of live leaderboard shards",
	})
	m.storeUsersPerShard = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "store_users_per_shard",
		Help: "Number of users tracked per shard",
	}, []string{"shard"})
	m.storeIncrementLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "store_increment_latency_milliseconds",
		Help:    "Histogram of increment latency in milliseconds",
		Buckets: m.histogramBuckets,
	})
	m.storeQueryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "store_query_latency_milliseconds",
		Help:    "Histogram of topN/rank query latency in milliseconds",
		Buckets: m.histogramBuckets,
	})
	m.storeShardsPurged = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "store_shards_purged_total",
		Help: "Total number of expired shards removed by sweep or lazy purge",
	})
	m.storeSnapshotSaves = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "store_snapshot_saves_total",
		Help: "Total number of leaderboard snapshots written to disk",
	})
	m.storeSnapshotLoads = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "store_snapshot_loads_total",
		Help: "Total number of leaderboard snapshots restored from disk",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "Total number of HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "errors_total",
		Help: "Total errors by component and kind",
	}, []string{"component", "kind"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "system_memory_usage_bytes",
		Help: "Current heap allocation in bytes",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "system_goroutine_count",
		Help: "Current number of goroutines",
	})
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "system_gc_pause_milliseconds",
		Help:    "Average GC pause time in milliseconds",
		Buckets: m.histogramBuckets,
	})
}

// Session lifecycle helpers.

func RecordSessionStarted()           { globalManager.sessionsStarted.Inc() }
func RecordSessionCompleted()         { globalManager.sessionsCompleted.Inc() }
func RecordSessionInterrupted()       { globalManager.sessionsInterrupted.Inc() }
func RecordSessionResumed()           { globalManager.sessionsResumed.Inc() }
func UpdateActiveSessions(n int)      { globalManager.sessionsActive.Set(float64(n)) }
func RecordSessionDuration(sec int64) { globalManager.sessionDuration.Observe(float64(sec)) }
func RecordClockSkewClamp()           { globalManager.clockSkewClamps.Inc() }

// Heartbeat pipeline helpers.

func RecordHeartbeat()          { globalManager.heartbeats.Inc() }
func RecordHeartbeatDuplicate() { globalManager.heartbeatDuplicates.Inc() }
func RecordDeltaApplied(seconds int64) {
	globalManager.deltasApplied.Inc()
	globalManager.deltaSeconds.Add(float64(seconds))
}

// Queue helpers.

func UpdateQueueSize(size int)         { globalManager.queueSize.Set(float64(size)) }
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }
func UpdateQueueUtilization(u float64) { globalManager.queueUtilization.Set(u) }
func RecordQueueEnqueue()              { globalManager.queueEnqueues.Inc() }
func RecordQueueDequeue()              { globalManager.queueDequeues.Inc() }
func RecordQueueRejection()            { globalManager.queueRejections.Inc() }

// Worker helpers.

func UpdateWorkerCount(n int)                  { globalManager.workerCount.Set(float64(n)) }
func RecordWorkerProcessingLatency(ms float64) { globalManager.workerProcessingLatency.Observe(ms) }
func RecordWorkerError()                       { globalManager.workerErrors.Inc() }
func RecordWorkerRetry()                       { globalManager.workerRetries.Inc() }

// Store helpers.

func UpdateStoreShardCount(n int) { globalManager.storeShardCount.Set(float64(n)) }
func UpdateStoreUsersPerShard(shard string, n int) {
	globalManager.storeUsersPerShard.WithLabelValues(shard).Set(float64(n))
}
func RecordStoreIncrementLatency(ms float64) { globalManager.storeIncrementLatency.Observe(ms) }
func RecordStoreQueryLatency(ms float64)     { globalManager.storeQueryLatency.Observe(ms) }
func RecordShardPurged()                     { globalManager.storeShardsPurged.Inc() }
func RecordSnapshotSave()                    { globalManager.storeSnapshotSaves.Inc() }
func RecordSnapshotLoad()                    { globalManager.storeSnapshotLoads.Inc() }

// HTTP helpers.

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// RecordErrorByComponent counts an error for a component/kind pair.
func RecordErrorByComponent(component, kind string) {
	globalManager.errorsByComponent.WithLabelValues(component, kind).Inc()
}

// GetRegistry exposes the custom registry for the /healthz handler.
// Process health helpers.

func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(n int)     { globalManager.systemGoroutineCount.Set(float64(n)) }
func RecordSystemGCPauseTime(ms float64)   { globalManager.systemGCPauseTime.Observe(ms) }

func GetRegistry() *prometheus.Registry {
	return customRegistry
}
