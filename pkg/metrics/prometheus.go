// Package metrics provides Prometheus metrics for the age guessing game server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the game server.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	registry       prometheus.Registerer

	// Game lifecycle
	gamesStarted   prometheus.Counter
	gamesCompleted prometheus.Counter
	roundsPlayed   prometheus.Counter
	roundScore     prometheus.Histogram
	finalScore     prometheus.Histogram

	// Subject resolution
	oracleLatency  prometheus.Histogram
	oracleErrors   *prometheus.CounterVec
	resolveRetries prometheus.Counter
	replacements   prometheus.Counter

	// Persistence
	sessionConflicts      prometheus.Counter
	sessionsSwept         prometheus.Counter
	leaderboardSubmits    prometheus.Counter
	leaderboardDuplicates prometheus.Counter
	storeErrors           *prometheus.CounterVec
	liveSubscribers       prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "ageguess",
		subsystem:      "game",
		latencyBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat collector declarations
	auto := promauto.With(m.registry)
	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		})
	}
	scoreBuckets := prometheus.LinearBuckets(0, 500, 11)

	m.gamesStarted = counter("games_started_total", "Total number of games started")
	m.gamesCompleted = counter("games_completed_total", "Total number of games that reached the final round")
	m.roundsPlayed = counter("rounds_played_total", "Total number of scored guesses")
	m.roundScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "round_score",
		Help:    "Distribution of per-round scores",
		Buckets: scoreBuckets,
	})
	m.finalScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "final_score",
		Help:    "Distribution of completed game totals",
		Buckets: prometheus.LinearBuckets(0, 2500, 11),
	})

	m.oracleLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "oracle_latency_milliseconds",
		Help:    "Age oracle round-trip latency in milliseconds",
		Buckets: m.latencyBuckets,
	})
	m.oracleErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "oracle_errors_total",
		Help: "Age oracle failures by kind",
	}, []string{"kind"})
	m.resolveRetries = counter("resolve_retries_total", "Names discarded because the oracle had no age for them")
	m.replacements = counter("subject_replacements_total", "Pre-selected subjects swapped for a name with a known age")

	m.sessionConflicts = counter("session_conflicts_total", "Stale session writes rejected by the version check")
	m.sessionsSwept = counter("sessions_swept_total", "Expired sessions removed by the sweeper")
	m.leaderboardSubmits = counter("leaderboard_submissions_total", "Scores recorded on the leaderboard")
	m.leaderboardDuplicates = counter("leaderboard_duplicates_total", "Repeated submissions for an already recorded game")
	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "store_errors_total",
		Help: "Session and leaderboard store failures by store and kind",
	}, []string{"store", "kind"})
	m.liveSubscribers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "live_subscribers",
		Help: "Open live leaderboard websocket connections",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_errors_total",
		Help: "HTTP error responses by endpoint, method and error type",
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name: "memory_usage_bytes",
		Help: "Heap bytes allocated",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name: "goroutines",
		Help: "Number of goroutines",
	})
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name:    "gc_pause_milliseconds",
		Help:    "Average GC pause in milliseconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	})
}

// Game lifecycle.

// RecordGameStarted increments the started games counter.
func RecordGameStarted() { globalManager.gamesStarted.Inc() }

// RecordRound records one scored guess.
func RecordRound(score int) {
	globalManager.roundsPlayed.Inc()
	globalManager.roundScore.Observe(float64(score))
}

// RecordGameCompleted records a finished game and its total.
func RecordGameCompleted(total int) {
	globalManager.gamesCompleted.Inc()
	globalManager.finalScore.Observe(float64(total))
}

// Subject resolution.

// RecordOracleLatency records one oracle round-trip.
func RecordOracleLatency(latencyMs float64) { globalManager.oracleLatency.Observe(latencyMs) }

// RecordOracleError counts an oracle failure of the given kind.
func RecordOracleError(kind string) { globalManager.oracleErrors.WithLabelValues(kind).Inc() }

// RecordResolveRetry counts a name dropped for lack of an age.
func RecordResolveRetry() { globalManager.resolveRetries.Inc() }

// RecordSubjectReplaced counts a pre-selected subject swapped mid-game.
func RecordSubjectReplaced() { globalManager.replacements.Inc() }

// Persistence.

// RecordSessionConflict counts a rejected stale session write.
func RecordSessionConflict() { globalManager.sessionConflicts.Inc() }

// RecordSessionsSwept adds n expired sessions to the sweep counter.
func RecordSessionsSwept(n int) { globalManager.sessionsSwept.Add(float64(n)) }

// RecordLeaderboardSubmit counts a recorded leaderboard entry.
func RecordLeaderboardSubmit() { globalManager.leaderboardSubmits.Inc() }

// RecordLeaderboardDuplicate counts a repeated submission.
func RecordLeaderboardDuplicate() { globalManager.leaderboardDuplicates.Inc() }

// RecordStoreError counts a store failure.
func RecordStoreError(store, kind string) {
	globalManager.storeErrors.WithLabelValues(store, kind).Inc()
}

// UpdateLiveSubscribers sets the number of live leaderboard connections.
func UpdateLiveSubscribers(n int) { globalManager.liveSubscribers.Set(float64(n)) }

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
