package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	producerMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_kafka_messages_published_total",
			Help: "Kafka messages published.",
		},
		[]string{"topic"},
	)

	producerPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_kafka_publish_errors_total",
			Help: "Kafka publish failures.",
		},
		[]string{"topic"},
	)

	producerPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_kafka_publish_duration_seconds",
			Help:    "Kafka publish latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)

	consumerMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_kafka_messages_consumed_total",
			Help: "Kafka messages fetched by consumers.",
		},
		[]string{"topic"},
	)

	consumerMessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_kafka_consume_failures_total",
			Help: "Kafka messages that could not be decoded or handled.",
		},
		[]string{"topic", "reason"},
	)

	consumerHandleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_kafka_handle_duration_seconds",
			Help:    "Time spent in a consumer handler per attempt.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)

	deadLetteredMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_kafka_dead_lettered_total",
			Help: "Messages written to a dead-letter topic.",
		},
		[]string{"source_topic"},
	)
)
