package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trackit_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trackit_db_slow_queries_total",
			Help: "Queries slower than the configured threshold",
		},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trackit_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	TaskTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackit_task_transitions_total",
			Help: "Committed task status changes by source and target column",
		},
		[]string{"from", "to"},
	)

	BoardSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trackit_board_subscribers",
			Help: "Currently connected board subscribers on this instance",
		},
	)

	// origin: local, relay, client
	BoardBroadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackit_board_broadcasts_total",
			Help: "Board changed signals published",
		},
		[]string{"origin"},
	)

	BoardDroppedSignals = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trackit_board_dropped_signals_total",
			Help: "Signals dropped because a subscriber buffer was full",
		},
	)

	RelayPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackit_relay_publish_failures_total",
			Help: "Board signals the relay could not hand to its broker",
		},
		[]string{"relay"},
	)
)

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementSlowQuery counts one slow query.
func IncrementSlowQuery() {
	SlowQueryCount.Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementTaskTransition(from, to string) {
	TaskTransitions.WithLabelValues(from, to).Inc()
}

func IncrementBroadcast(origin string) {
	BoardBroadcasts.WithLabelValues(origin).Inc()
}

func IncrementDroppedSignal() {
	BoardDroppedSignals.Inc()
}

func IncrementRelayFailure(relay string) {
	RelayPublishFailures.WithLabelValues(relay).Inc()
}
