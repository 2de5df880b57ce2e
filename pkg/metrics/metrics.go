package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	SendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_sends_total",
			Help: "Total dispatch attempts by outcome",
		},
		[]string{"outcome"}, // outcome: sent, failed, skipped, deduped
	)

	TimeoutsScheduledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_timeouts_scheduled_total",
			Help: "Total timeout jobs scheduled",
		},
		[]string{"event_type"},
	)

	TimeoutsFiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_timeouts_fired_total",
			Help: "Total fired timeout jobs by outcome",
		},
		[]string{"outcome"}, // outcome: synthesized, superseded, error
	)

	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outreach_transitions_total",
			Help: "Total transition engine invocations by result",
		},
		[]string{"result"}, // result: moved, absorbed, error
	)

	// Gap between a timeout's scheduled time and when the queue actually
	// delivered it. Persistent growth here means the queue is falling behind.
	TimeoutFireDrift = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "outreach_timeout_fire_drift_seconds",
			Help:    "Delay between scheduled_at and actual firing of timeout jobs",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)

	TransportCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "outreach_transport_call_latency_ms",
			Help:    "Outbound transport call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
		[]string{"status"},
	)
)

func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

func RecordTransportCall(status string, duration time.Duration) {
	TransportCallLatency.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func IncrementSend(outcome string) {
	SendsTotal.WithLabelValues(outcome).Inc()
}

func IncrementTimeoutScheduled(eventType string) {
	TimeoutsScheduledTotal.WithLabelValues(eventType).Inc()
}

func IncrementTimeoutFired(outcome string) {
	TimeoutsFiredTotal.WithLabelValues(outcome).Inc()
}

func IncrementTransition(result string) {
	TransitionsTotal.WithLabelValues(result).Inc()
}

func RecordTimeoutDrift(drift time.Duration) {
	if drift < 0 {
		drift = 0
	}
	TimeoutFireDrift.Observe(drift.Seconds())
}
