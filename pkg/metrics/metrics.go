package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookNotificationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_notification_count",
			Help: "Total webhook notification items by processing outcome",
		},
		[]string{"outcome"}, // processed, invalid_state, fetch_failed, no_token, error
	)

	ClassifyLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "classify_latency_ms",
			Help:    "Email classification latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"source"}, // llm, rules
	)

	GraphCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "graph_call_latency_ms",
			Help:    "Microsoft Graph API call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10),
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	SSEClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connected_clients",
			Help: "Currently connected SSE clients",
		},
	)

	DetectionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "detection_count",
			Help: "Total detections created by toy type",
		},
		[]string{"toy_type"},
	)
)

func RecordClassifyLatency(source string, duration time.Duration) {
	ClassifyLatency.WithLabelValues(source).Observe(float64(duration.Milliseconds()))
}

func RecordGraphCallLatency(operation, status string, duration time.Duration) {
	GraphCallLatency.WithLabelValues(operation, status).Observe(float64(duration.Milliseconds()))
}

func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

func IncrementWebhookNotification(outcome string) {
	WebhookNotificationCount.WithLabelValues(outcome).Inc()
}

func IncrementDetection(toyType string) {
	DetectionCount.WithLabelValues(toyType).Inc()
}
