package api

import (
	"net/http"
	"strconv"
	"time"
)

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	out, err := h.stats.Statistics(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) weekly(w http.ResponseWriter, r *http.Request) {
	out, err := h.stats.WeeklyCompletionData(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) performance(w http.ResponseWriter, r *http.Request) {
	out, err := h.stats.HabitPerformance(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// heatmap defaults year and month to the current calendar month.
func (h *Handler) heatmap(w http.ResponseWriter, r *http.Request) {
	today := h.stats.Today()
	year, month := today.Year(), int(today.Month())

	q := r.URL.Query()
	if raw := q.Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 9999 {
			writeValidation(w, fieldError("year", "must be a year between 1 and 9999"))
			return
		}
		year = parsed
	}
	if raw := q.Get("month"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 12 {
			writeValidation(w, fieldError("month", "must be a month number between 1 and 12"))
			return
		}
		month = parsed
	}

	out, err := h.stats.MonthlyHeatmap(r.Context(), year, time.Month(month))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) trends(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "habitId")
	if err != nil {
		writeValidation(w, err)
		return
	}
	out, err := h.stats.HabitTrends(r.Context(), id)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) comparison(w http.ResponseWriter, r *http.Request) {
	out, err := h.stats.HabitComparison(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) streaks(w http.ResponseWriter, r *http.Request) {
	out, err := h.stats.Streaks(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
