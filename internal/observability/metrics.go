// Package observability owns the Prometheus collectors shared across the service.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	habitsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "habit_service",
		Subsystem: "store",
		Name:      "habits",
		Help:      "Number of habits currently stored.",
	})
	completionGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "habit_service",
		Subsystem: "store",
		Name:      "last_completion_recorded_timestamp_seconds",
		Help:      "Unix timestamp of the most recent completion upsert.",
	})
	completionsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "habit_service",
		Subsystem: "store",
		Name:      "completions_recorded_total",
		Help:      "Number of completion upserts accepted.",
	})

	requestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "habit_service",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, labeled by route, method and status code.",
	}, []string{"route", "method", "code"})
	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "habit_service",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time spent serving HTTP requests, labeled by route.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"route"})
)

func init() {
	prometheus.MustRegister(habitsGauge, completionGauge, completionsCounter, requestCounter, requestDuration)
}

// SetHabitCount overwrites the habit gauge, e.g. after seeding or a reset.
func SetHabitCount(n int) {
	habitsGauge.Set(float64(n))
}

// RecordHabitCreated increments the habit gauge.
func RecordHabitCreated() {
	habitsGauge.Inc()
}

// RecordHabitDeleted decrements the habit gauge.
func RecordHabitDeleted() {
	habitsGauge.Dec()
}

// RecordCompletion updates the completion watermark and counter.
func RecordCompletion(ts time.Time) {
	completionsCounter.Inc()
	if ts.IsZero() {
		return
	}
	completionGauge.Set(float64(ts.Unix()))
}

// ObserveRequest records one served request.
func ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if status == 0 {
		status = http.StatusOK
	}
	requestCounter.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
