package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Change event publishing metrics
var (
	// KafkaEventsTotal counts change events by type and outcome
	KafkaEventsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_events_total",
			Help:      "Total number of change events handled by the publisher",
		},
		[]string{"type", "result"}, // type: upsert|delete, result: published|failed|dropped
	)

	// KafkaQueueDepth is the number of events waiting for the publisher worker
	KafkaQueueDepth = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kafka_queue_depth",
			Help:      "Number of change events queued for publishing",
		},
	)

	// KafkaWriteDuration records broker write latency in seconds
	KafkaWriteDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_write_duration_seconds",
			Help:      "Latency of change event writes to the broker in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)
