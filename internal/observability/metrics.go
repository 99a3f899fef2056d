// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Webhook metrics
	WebhookRequests      *prometheus.CounterVec
	NotificationsSeen    prometheus.Counter
	PoolsDetected        *prometheus.CounterVec
	LiquidityUSD         prometheus.Histogram
	BatchProcessingTime  prometheus.Histogram
	FeedMessagesReceived prometheus.Counter
	FeedReconnects       prometheus.Counter
	PoolInstructions     prometheus.Counter

	// Oracle metrics
	LockChecks     *prometheus.CounterVec
	RPCCallLatency *prometheus.HistogramVec

	// Sink metrics
	SinkErrors      *prometheus.CounterVec
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastBatchProcessed prometheus.Gauge
}

// Namespace prefixes every metric the service exports, Kafka client
// metrics included.
const Namespace = "liquidity_watch"

// NewMetrics creates a new Metrics instance registered with reg.
// An empty namespace uses Namespace; a nil reg uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = Namespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		WebhookRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "requests_total",
			Help:      "Total number of webhook requests by response code",
		}, []string{"code"}),
		NotificationsSeen: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "notifications_total",
			Help:      "Total number of notifications received",
		}),
		PoolsDetected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "pools_total",
			Help:      "Total number of pool-creation events by report status",
		}, []string{"status"}),
		LiquidityUSD: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "pool_liquidity_usd",
			Help:      "Estimated USD liquidity of detected pools",
			Buckets:   []float64{100, 500, 1000, 2000, 5000, 10000, 50000, 100000, 1000000},
		}),
		BatchProcessingTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "batch_duration_seconds",
			Help:      "Batch processing duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		PoolInstructions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "initialize_pool_instructions_total",
			Help:      "Total number of initialize_pool instructions seen in notifications",
		}),
		FeedMessagesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_total",
			Help:      "Total number of WebSocket feed messages received",
		}),
		FeedReconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Total number of WebSocket feed reconnects",
		}),

		LockChecks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "lock_checks_total",
			Help:      "Total number of lock assessments by status and result",
		}, []string{"status", "locked"}),
		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		SinkErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "errors_total",
			Help:      "Total number of report sink failures",
		}, []string{"sink"}),
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastBatchProcessed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_batch_timestamp",
			Help:      "Unix timestamp of last successfully processed batch",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordWebhookRequest counts a webhook response by status code.
func RecordWebhookRequest(code string) {
	DefaultMetrics.WebhookRequests.WithLabelValues(code).Inc()
}

// RecordNotifications adds n received notifications.
func RecordNotifications(n int) {
	DefaultMetrics.NotificationsSeen.Add(float64(n))
}

// RecordPool records a detected pool and its estimated liquidity.
func RecordPool(status string, liquidityUSD float64) {
	DefaultMetrics.PoolsDetected.WithLabelValues(status).Inc()
	DefaultMetrics.LiquidityUSD.Observe(liquidityUSD)
}

// RecordBatch records a processed batch.
func RecordBatch(seconds float64, finishedUnix int64) {
	DefaultMetrics.BatchProcessingTime.Observe(seconds)
	DefaultMetrics.LastBatchProcessed.Set(float64(finishedUnix))
}

// RecordPoolInstruction counts one initialize_pool instruction.
func RecordPoolInstruction() {
	DefaultMetrics.PoolInstructions.Inc()
}

// RecordFeedMessage increments the feed message counter.
func RecordFeedMessage() {
	DefaultMetrics.FeedMessagesReceived.Inc()
}

// RecordFeedReconnect increments the feed reconnect counter.
func RecordFeedReconnect() {
	DefaultMetrics.FeedReconnects.Inc()
}

// RecordLockCheck records the outcome of a lock assessment.
func RecordLockCheck(status string, locked bool) {
	l := "false"
	if locked {
		l = "true"
	}
	DefaultMetrics.LockChecks.WithLabelValues(status, l).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordSinkError counts a failed report sink write.
func RecordSinkError(sink string) {
	DefaultMetrics.SinkErrors.WithLabelValues(sink).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
