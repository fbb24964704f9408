package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LikeOperations counts like/unlike requests by operation and whether the
	// roster actually changed.
	LikeOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialapp_likes_total",
		Help: "Like and unlike operations by result (applied or noop)",
	}, []string{"op", "result"})

	// DigestLatency records how long the recent-likes aggregation takes.
	DigestLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "socialapp_digest_seconds",
		Help:    "Latency of the recent likes aggregation in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// BlobDeleteFailures counts best-effort blob deletions that failed and
	// may have left an orphaned object behind.
	BlobDeleteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socialapp_blob_delete_failures_total",
		Help: "Blob deletions that failed after their post was deleted",
	})

	// StoreLatency records document store latency by operation and collection.
	StoreLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "socialapp_store_latency_seconds",
		Help:    "Document store operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "collection"})

	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialapp_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// NotificationsPublished counts realtime notification publishes.
	NotificationsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialapp_notifications_published_total",
		Help: "Realtime notifications published by result",
	}, []string{"result"})

	// RateLimitRejections counts requests refused with 429 by limiter rule.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialapp_rate_limit_rejections_total",
		Help: "Requests rejected by a rate limit rule",
	}, []string{"rule"})

	// WebSocketConnections is the gauge of open notification sockets.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "socialapp_websocket_connections",
		Help: "Number of open notification websocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialapp_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})
)

// TrackStore returns a function that records store latency when called (e.g. defer).
func TrackStore(operation, collection string) func() {
	start := time.Now()
	return func() {
		StoreLatency.WithLabelValues(operation, collection).Observe(time.Since(start).Seconds())
	}
}

// RecordLike records the outcome of a like or unlike.
func RecordLike(op string, applied bool) {
	result := "noop"
	if applied {
		result = "applied"
	}
	LikeOperations.WithLabelValues(op, result).Inc()
}
