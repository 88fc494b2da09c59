package observability

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestHabitGaugeTracksLifecycle(t *testing.T) {
	SetHabitCount(2)
	RecordHabitCreated()
	RecordHabitDeleted()
	RecordHabitCreated()
	require.Equal(t, float64(3), testutil.ToFloat64(habitsGauge))

	SetHabitCount(0)
	require.Zero(t, testutil.ToFloat64(habitsGauge))
}

func TestRecordCompletionSetsWatermark(t *testing.T) {
	before := testutil.ToFloat64(completionsCounter)
	ts := time.Date(2024, time.October, 18, 9, 0, 0, 0, time.UTC)

	RecordCompletion(ts)
	require.Equal(t, before+1, testutil.ToFloat64(completionsCounter))
	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(completionGauge))

	RecordCompletion(time.Time{})
	require.Equal(t, float64(ts.Unix()), testutil.ToFloat64(completionGauge))
}

func TestObserveRequestLabels(t *testing.T) {
	ObserveRequest("/api/habits/{id}", http.MethodGet, http.StatusNotFound, 5*time.Millisecond)
	ObserveRequest("/api/habits/{id}", http.MethodGet, 0, time.Millisecond)

	require.Equal(t, float64(1), testutil.ToFloat64(requestCounter.WithLabelValues("/api/habits/{id}", http.MethodGet, "404")))
	require.GreaterOrEqual(t, testutil.ToFloat64(requestCounter.WithLabelValues("/api/habits/{id}", http.MethodGet, "200")), float64(1))
}
