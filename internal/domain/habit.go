package domain

import (
	"slices"
	"strings"
	"time"

	"example.com/habits/internal/dateutil"
)

// DefaultColor is applied to habits created without a color.
const DefaultColor = "#4F46E5"

// Habit is a user-defined recurring activity with a weekly schedule.
type Habit struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Description   *string   `json:"description"`
	Color         string    `json:"color"`
	FrequencyDays []int     `json:"frequencyDays"`
	ReminderTime  *string   `json:"reminderTime"`
	CreatedAt     time.Time `json:"createdAt"`
	UserID        *int64    `json:"userId"`
}

// ScheduledOn reports whether the habit is due on the given weekday.
func (h Habit) ScheduledOn(wd time.Weekday) bool {
	return slices.Contains(h.FrequencyDays, int(wd))
}

// Apply merges a partial update onto the habit. Fields absent from the patch
// keep their current value; ID and CreatedAt never change.
func (h Habit) Apply(p HabitPatch) Habit {
	if p.Name != nil {
		h.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		h.Description = cloneString(p.Description)
	}
	if p.Color != nil {
		h.Color = *p.Color
	}
	if p.FrequencyDays != nil {
		h.FrequencyDays = NormalizeDays(*p.FrequencyDays)
	}
	if p.ReminderTime != nil {
		h.ReminderTime = cloneString(p.ReminderTime)
	}
	if p.UserID != nil {
		id := *p.UserID
		h.UserID = &id
	}
	return h
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (h Habit) Clone() Habit {
	h.FrequencyDays = slices.Clone(h.FrequencyDays)
	h.Description = cloneString(h.Description)
	h.ReminderTime = cloneString(h.ReminderTime)
	if h.UserID != nil {
		id := *h.UserID
		h.UserID = &id
	}
	return h
}

// HabitInput carries the fields accepted when creating a habit.
type HabitInput struct {
	Name          string
	Description   *string
	Color         *string
	FrequencyDays []int
	ReminderTime  *string
	UserID        *int64
}

// NewHabit materialises the input as a stored habit, applying defaults.
func (in HabitInput) NewHabit(id int64, createdAt time.Time) Habit {
	h := Habit{
		ID:            id,
		Name:          strings.TrimSpace(in.Name),
		Description:   cloneString(in.Description),
		Color:         DefaultColor,
		FrequencyDays: NormalizeDays(in.FrequencyDays),
		ReminderTime:  cloneString(in.ReminderTime),
		CreatedAt:     createdAt,
	}
	if in.Color != nil && *in.Color != "" {
		h.Color = *in.Color
	}
	if in.UserID != nil {
		uid := *in.UserID
		h.UserID = &uid
	}
	return h
}

// HabitPatch is a partial update; nil fields are left untouched.
type HabitPatch struct {
	Name          *string
	Description   *string
	Color         *string
	FrequencyDays *[]int
	ReminderTime  *string
	UserID        *int64
}

// HabitCompletion marks a habit done or not done on one calendar day.
type HabitCompletion struct {
	ID        int64        `json:"id"`
	HabitID   int64        `json:"habitId"`
	Date      dateutil.Day `json:"date"`
	Completed bool         `json:"completed"`
	UserID    *int64       `json:"userId"`
}

// CompletionInput is the payload of the upsert-by-date write path.
type CompletionInput struct {
	HabitID   int64
	Date      dateutil.Day
	Completed bool
	UserID    *int64
}

// NormalizeDays drops duplicates and sorts weekday numbers ascending. The
// stored set is never nil so it serialises as [] rather than null.
func NormalizeDays(days []int) []int {
	out := make([]int, 0, len(days))
	for _, d := range days {
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
