package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"example.com/habits/internal/dateutil"
	"example.com/habits/internal/domain"
	"example.com/habits/internal/events"
	"example.com/habits/internal/persistence/memory"
	"example.com/habits/internal/stats"
)

// Friday 2024-10-18.
func fixedNow() time.Time {
	return time.Date(2024, time.October, 18, 12, 0, 0, 0, time.UTC)
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return nil
}

type testServer struct {
	router    *mux.Router
	repo      domain.HabitRepository
	publisher *recordingPublisher
	logs      *test.Hook
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithRepo(t, memory.NewRepository())
}

func newTestServerWithRepo(t *testing.T, repo domain.HabitRepository) *testServer {
	t.Helper()
	logger, hook := test.NewNullLogger()
	publisher := &recordingPublisher{}

	service := domain.NewService(repo, publisher, domain.WithClock(fixedNow), domain.WithLogger(logger))
	engine := stats.NewEngine(repo, stats.WithClock(fixedNow), stats.WithLocation(time.UTC))
	handler := NewHandler(service, engine, WithLocation(time.UTC), WithLogger(logger))

	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return &testServer{router: router, repo: repo, publisher: publisher, logs: hook}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func (s *testServer) createHabit(t *testing.T, name string, days []int) domain.Habit {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/habits", map[string]interface{}{
		"name":          name,
		"frequencyDays": days,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[domain.Habit](t, rr)
}

func TestCreateHabitAppliesDefaults(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodPost, "/api/habits", map[string]interface{}{
		"name":          "  Read  ",
		"frequencyDays": []int{5, 1, 1},
		"reminderTime":  "21:00",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, float64(1), body["id"])
	require.Equal(t, "Read", body["name"])
	require.Equal(t, domain.DefaultColor, body["color"])
	require.Equal(t, []interface{}{float64(1), float64(5)}, body["frequencyDays"])
	require.Equal(t, "21:00", body["reminderTime"])
	require.Nil(t, body["description"])
	require.Nil(t, body["userId"])
	require.Equal(t, "2024-10-18T12:00:00Z", body["createdAt"])

	require.Len(t, srv.publisher.events, 1)
	require.Equal(t, events.TypeHabitCreated, srv.publisher.events[0].Type)
	require.Equal(t, "habit-1", srv.publisher.events[0].Key)
}

func TestCreateHabitValidation(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodPost, "/api/habits", map[string]interface{}{
		"name":          "   ",
		"frequencyDays": []int{1, 9},
		"color":         "blue",
		"reminderTime":  "25:00",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	resp := decode[ErrorResponse](t, rr)
	require.Equal(t, "validation_failed", resp.Type)
	require.Contains(t, resp.Fields, "name")
	require.Contains(t, resp.Fields, "frequencyDays[1]")
	require.Contains(t, resp.Fields, "color")
	require.Contains(t, resp.Fields, "reminderTime")
	require.Empty(t, srv.publisher.events)

	rr = srv.do(t, http.MethodPost, "/api/habits", map[string]interface{}{"name": "Read"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, decode[ErrorResponse](t, rr).Fields, "frequencyDays")

	rr = srv.do(t, http.MethodPost, "/api/habits", "{not json")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid_request", decode[ErrorResponse](t, rr).Type)
}

func TestGetHabit(t *testing.T) {
	srv := newTestServer(t)
	habit := srv.createHabit(t, "Read", []int{0, 6})

	rr := srv.do(t, http.MethodGet, "/api/habits/1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, habit, decode[domain.Habit](t, rr))

	rr = srv.do(t, http.MethodGet, "/api/habits/2", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "not_found", decode[ErrorResponse](t, rr).Type)

	rr = srv.do(t, http.MethodGet, "/api/habits/abc", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, decode[ErrorResponse](t, rr).Fields, "id")
}

func TestUpdateHabitMerges(t *testing.T) {
	srv := newTestServer(t)
	srv.createHabit(t, "Read", []int{0, 6})

	rr := srv.do(t, http.MethodPut, "/api/habits/1", map[string]interface{}{"color": "#10B981"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[domain.Habit](t, rr)
	require.Equal(t, "Read", updated.Name)
	require.Equal(t, "#10B981", updated.Color)
	require.Equal(t, []int{0, 6}, updated.FrequencyDays)

	rr = srv.do(t, http.MethodPut, "/api/habits/1", map[string]interface{}{"name": ""})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(t, http.MethodPut, "/api/habits/9", map[string]interface{}{"name": "x"})
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteHabitCascades(t *testing.T) {
	srv := newTestServer(t)
	srv.createHabit(t, "Read", []int{5})

	rr := srv.do(t, http.MethodPost, "/api/completions", map[string]interface{}{
		"habitId": 1, "date": "2024-10-18", "completed": true,
	})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = srv.do(t, http.MethodDelete, "/api/habits/1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "Habit deleted successfully", decode[MessageResponse](t, rr).Message)

	completion, err := srv.repo.GetCompletionByHabitAndDate(context.Background(), 1, dateutil.MustParse("2024-10-18"))
	require.NoError(t, err)
	require.Nil(t, completion)

	rr = srv.do(t, http.MethodDelete, "/api/habits/1", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRecordCompletionUpserts(t *testing.T) {
	srv := newTestServer(t)
	srv.createHabit(t, "Read", []int{0, 1, 2, 3, 4, 5, 6})

	rr := srv.do(t, http.MethodPost, "/api/completions", map[string]interface{}{
		"habitId": 1, "date": "2024-10-18", "completed": true,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	first := decode[domain.HabitCompletion](t, rr)
	require.True(t, first.Completed)
	require.Equal(t, "2024-10-18", first.Date.String())

	// A timestamp late on the same day in UTC normalizes to the same record.
	rr = srv.do(t, http.MethodPost, "/api/habits/completion", map[string]interface{}{
		"habitId": 1, "date": "2024-10-18T23:15:00Z", "completed": false,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	second := decode[domain.HabitCompletion](t, rr)
	require.Equal(t, first.ID, second.ID)
	require.False(t, second.Completed)

	rr = srv.do(t, http.MethodGet, "/api/completions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	all := decode[[]domain.HabitCompletion](t, rr)
	require.Len(t, all, 1)
	require.False(t, all[0].Completed)

	rr = srv.do(t, http.MethodGet, "/api/habits/completions", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decode[[]domain.HabitCompletion](t, rr), 1)

	require.Len(t, srv.publisher.events, 3)
	require.Equal(t, events.TypeCompletionRecorded, srv.publisher.events[2].Type)
}

func TestRecordCompletionErrors(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodPost, "/api/completions", map[string]interface{}{
		"habitId": 4, "date": "2024-10-18", "completed": true,
	})
	require.Equal(t, http.StatusNotFound, rr.Code)

	srv.createHabit(t, "Read", []int{1})
	rr = srv.do(t, http.MethodPost, "/api/completions", map[string]interface{}{
		"habitId": 1, "date": "18/10/2024",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, decode[ErrorResponse](t, rr).Fields, "date")

	rr = srv.do(t, http.MethodPost, "/api/completions", map[string]interface{}{"completed": true})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	fields := decode[ErrorResponse](t, rr).Fields
	require.Contains(t, fields, "habitId")
	require.Contains(t, fields, "date")
}

func TestRecordCompletionDefaultsToCompleted(t *testing.T) {
	srv := newTestServer(t)
	srv.createHabit(t, "Read", []int{5})

	rr := srv.do(t, http.MethodPost, "/api/completions", map[string]interface{}{
		"habitId": 1, "date": "2024-10-18",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.True(t, decode[domain.HabitCompletion](t, rr).Completed)

	stored, err := srv.repo.GetCompletionByHabitAndDate(context.Background(), 1, dateutil.MustParse("2024-10-18"))
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.True(t, stored.Completed)

	rr = srv.do(t, http.MethodPost, "/api/completions", map[string]interface{}{
		"habitId": 1, "date": "2024-10-18", "completed": false,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.False(t, decode[domain.HabitCompletion](t, rr).Completed)
}

func TestListHabitsIncludesCompletionsAndRate(t *testing.T) {
	srv := newTestServer(t)
	srv.createHabit(t, "Workout", []int{1, 2, 3, 4, 5})
	for _, d := range []string{"2024-10-14", "2024-10-15", "2024-10-16", "2024-10-17"} {
		rr := srv.do(t, http.MethodPost, "/api/completions", map[string]interface{}{"habitId": 1, "date": d, "completed": true})
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := srv.do(t, http.MethodGet, "/api/habits", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[[]domain.HabitWithCompletions](t, rr)
	require.Len(t, list, 1)
	require.Equal(t, "Workout", list[0].Name)
	require.Len(t, list[0].Completions, 4)
	require.Equal(t, 80, list[0].CompletionRate)
}

func TestResetRestartsIDs(t *testing.T) {
	srv := newTestServer(t)
	srv.createHabit(t, "a", []int{1})
	srv.createHabit(t, "b", []int{1})

	rr := srv.do(t, http.MethodDelete, "/api/habits/reset", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = srv.do(t, http.MethodGet, "/api/habits", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, "[]", rr.Body.String())

	habit := srv.createHabit(t, "c", []int{1})
	require.Equal(t, int64(1), habit.ID)
}

func TestStatsEndpoints(t *testing.T) {
	srv := newTestServer(t)
	srv.createHabit(t, "Workout", []int{1, 2, 3, 4, 5})
	for _, d := range []string{"2024-10-14", "2024-10-15", "2024-10-16", "2024-10-17"} {
		rr := srv.do(t, http.MethodPost, "/api/completions", map[string]interface{}{"habitId": 1, "date": d, "completed": true})
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := srv.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"activeHabits":1,"completedToday":0,"totalToday":1,"weeklyStreak":80,"longestStreak":4}`, rr.Body.String())

	rr = srv.do(t, http.MethodGet, "/api/stats/weekly", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	weekly := decode[[]domain.WeeklyCompletionData](t, rr)
	require.Len(t, weekly, 7)
	require.Equal(t, "Sun", weekly[0].Day)
	require.Equal(t, "Sat", weekly[6].Day)

	rr = srv.do(t, http.MethodGet, "/api/stats/habits", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `[{"habitId":1,"habitName":"Workout","completionRate":80}]`, rr.Body.String())

	rr = srv.do(t, http.MethodGet, "/api/stats/comparison", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `[{"habitId":1,"name":"Workout","currentWeek":80,"previousWeek":0,"change":80}]`, rr.Body.String())

	rr = srv.do(t, http.MethodGet, "/api/stats/trends/1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	trends := decode[[]domain.HabitTrendData](t, rr)
	require.Len(t, trends, 8)
	require.Equal(t, domain.HabitTrendData{Week: "Oct 12-18", CompletionRate: 80}, trends[7])

	rr = srv.do(t, http.MethodGet, "/api/stats/trends/2", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = srv.do(t, http.MethodGet, "/api/stats/streaks", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `[{"habitId":1,"habitName":"Workout","currentStreak":4,"longestStreak":4}]`, rr.Body.String())
}

func TestHeatmapEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodGet, "/api/stats/heatmap?year=2024&month=2", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	heatmap := decode[[]domain.MonthlyHeatmapData](t, rr)
	require.Len(t, heatmap, 29)
	require.Equal(t, "2024-02-01", heatmap[0].Date.String())
	require.Equal(t, "2024-02-29", heatmap[28].Date.String())

	rr = srv.do(t, http.MethodGet, "/api/stats/heatmap", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	current := decode[[]domain.MonthlyHeatmapData](t, rr)
	require.Len(t, current, 31)
	require.Equal(t, "2024-10-01", current[0].Date.String())

	rr = srv.do(t, http.MethodGet, "/api/stats/heatmap?year=2024&month=13", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, decode[ErrorResponse](t, rr).Fields, "month")

	rr = srv.do(t, http.MethodGet, "/api/stats/heatmap?year=abc", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSaveSettings(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(t, http.MethodPost, "/api/settings", map[string]interface{}{
		"notifications": true, "morningReminder": "07:30", "eveningReminder": "",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, "Settings saved successfully", decode[MessageResponse](t, rr).Message)

	rr = srv.do(t, http.MethodPost, "/api/settings", map[string]interface{}{"morningReminder": "7am"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	fields := decode[ErrorResponse](t, rr).Fields
	require.Contains(t, fields, "notifications")
	require.Contains(t, fields, "morningReminder")
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rr := srv.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

type failingRepo struct {
	domain.HabitRepository
}

func (failingRepo) ListHabits(context.Context) ([]domain.Habit, error) {
	return nil, errors.New("connection refused")
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	srv := newTestServerWithRepo(t, failingRepo{HabitRepository: memory.NewRepository()})

	rr := srv.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	resp := decode[ErrorResponse](t, rr)
	require.Equal(t, "server_error", resp.Type)
	require.Equal(t, "internal error", resp.Detail)
	require.NotContains(t, rr.Body.String(), "connection refused")

	entry := srv.logs.LastEntry()
	require.NotNil(t, entry)
	require.Equal(t, logrus.ErrorLevel, entry.Level)
	require.Contains(t, entry.Data[logrus.ErrorKey].(error).Error(), "connection refused")
}
