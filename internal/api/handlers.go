// Package api exposes the HTTP handlers of the habit service.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"example.com/habits/internal/dateutil"
	"example.com/habits/internal/domain"
	"example.com/habits/internal/stats"
	httptransport "example.com/habits/internal/transport/http"
)

const maxBodyBytes = 1 << 20

// Handler coordinates HTTP requests with the domain service and the stats engine.
type Handler struct {
	service   *domain.Service
	stats     *stats.Engine
	loc       *time.Location
	logger    logrus.FieldLogger
	validator *validator.Validate
}

// Option configures a Handler.
type Option func(*Handler)

// WithLocation sets the zone used to turn timestamps into calendar dates.
func WithLocation(loc *time.Location) Option {
	return func(h *Handler) {
		if loc != nil {
			h.loc = loc
		}
	}
}

// WithLogger sets the logger used for internal failures.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, engine *stats.Engine, opts ...Option) *Handler {
	h := &Handler{
		service:   service,
		stats:     engine,
		loc:       time.Local,
		logger:    logrus.StandardLogger(),
		validator: newValidator(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the router. Literal paths are registered
// before their {id} siblings so they win the match.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/habits", h.listHabits).Methods(http.MethodGet)
	api.HandleFunc("/habits", h.createHabit).Methods(http.MethodPost)
	api.HandleFunc("/habits/reset", h.resetData).Methods(http.MethodDelete)
	api.HandleFunc("/habits/completions", h.listCompletions).Methods(http.MethodGet)
	api.HandleFunc("/habits/completion", h.recordCompletion).Methods(http.MethodPost)
	api.HandleFunc("/habits/{id}", h.getHabit).Methods(http.MethodGet)
	api.HandleFunc("/habits/{id}", h.updateHabit).Methods(http.MethodPut)
	api.HandleFunc("/habits/{id}", h.deleteHabit).Methods(http.MethodDelete)

	api.HandleFunc("/completions", h.listCompletions).Methods(http.MethodGet)
	api.HandleFunc("/completions", h.recordCompletion).Methods(http.MethodPost)

	api.HandleFunc("/stats", h.statistics).Methods(http.MethodGet)
	api.HandleFunc("/stats/weekly", h.weekly).Methods(http.MethodGet)
	api.HandleFunc("/stats/habits", h.performance).Methods(http.MethodGet)
	api.HandleFunc("/stats/heatmap", h.heatmap).Methods(http.MethodGet)
	api.HandleFunc("/stats/trends/{habitId}", h.trends).Methods(http.MethodGet)
	api.HandleFunc("/stats/comparison", h.comparison).Methods(http.MethodGet)
	api.HandleFunc("/stats/streaks", h.streaks).Methods(http.MethodGet)

	api.HandleFunc("/settings", h.saveSettings).Methods(http.MethodPost)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) listHabits(w http.ResponseWriter, r *http.Request) {
	habits, err := h.stats.HabitsWithCompletions(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, habits)
}

func (h *Handler) getHabit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeValidation(w, err)
		return
	}
	habit, err := h.service.GetHabit(r.Context(), id)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

func (h *Handler) createHabit(w http.ResponseWriter, r *http.Request) {
	var req CreateHabitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.normalize()
	if err := h.validate(req); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	habit, err := h.service.CreateHabit(r.Context(), req.toInput())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, habit)
}

func (h *Handler) updateHabit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeValidation(w, err)
		return
	}
	var req UpdateHabitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.normalize()
	if err := h.validate(req); err != nil {
		h.writeFailure(w, r, err)
		return
	}

	habit, err := h.service.UpdateHabit(r.Context(), id, req.toPatch())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

func (h *Handler) deleteHabit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeValidation(w, err)
		return
	}
	if err := h.service.DeleteHabit(r.Context(), id); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Habit deleted successfully"})
}

func (h *Handler) resetData(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ResetAllData(r.Context()); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "All habit data has been reset successfully"})
}

func (h *Handler) listCompletions(w http.ResponseWriter, r *http.Request) {
	completions, err := h.service.ListCompletions(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, completions)
}

// recordCompletion answers 201 when a record was created and 200 when the
// existing (habit, date) record was overwritten.
func (h *Handler) recordCompletion(w http.ResponseWriter, r *http.Request) {
	var req CompletionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := h.validate(req); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	day, err := dateutil.Parse(req.Date, h.loc)
	if err != nil {
		writeValidation(w, fieldError("date", "must be a YYYY-MM-DD date or an RFC 3339 timestamp"))
		return
	}

	completion, created, err := h.service.RecordCompletion(r.Context(), domain.CompletionInput{
		HabitID:   req.HabitID,
		Date:      day,
		Completed: req.completed(),
		UserID:    req.UserID,
	})
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, completion)
}

// saveSettings validates and acknowledges; settings are not stored.
func (h *Handler) saveSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := h.validate(req); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Settings saved successfully"})
}

// writeFailure maps domain and validation errors to their status codes.
// Anything else is logged and reported without detail.
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidation(w, verr)
	case errors.Is(err, domain.ErrHabitNotFound):
		writeError(w, http.StatusNotFound, "not_found", "habit not found")
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, stats.ErrInvalidMonth):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		h.logger.WithError(err).WithFields(logrus.Fields{
			"request_id": httptransport.RequestIDFrom(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
		}).Error("request failed")
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return errors.New("unable to parse body")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fieldError(name, "must be a positive integer")
	}
	return id, nil
}

func writeValidation(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Type: "validation_failed", Detail: err.Error()}
	var verr *ValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	writeJSON(w, http.StatusBadRequest, resp)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, ErrorResponse{Type: code, Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
