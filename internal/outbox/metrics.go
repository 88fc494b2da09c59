package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	deliveredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "habit_service",
		Subsystem: "events",
		Name:      "delivered_total",
		Help:      "Domain events published to Kafka, labeled by event type.",
	}, []string{"event_type"})

	failedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "habit_service",
		Subsystem: "events",
		Name:      "failed_total",
		Help:      "Domain events that could not be encoded or published, labeled by event type.",
	}, []string{"event_type"})

	publishDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "habit_service",
		Subsystem: "events",
		Name:      "publish_duration_seconds",
		Help:      "Time spent writing a single event to Kafka.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, publishDuration)
}
