// Package stats derives completion rates, series and rankings from the
// record store. Every call recomputes from a fresh snapshot.
package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"example.com/habits/internal/dateutil"
	"example.com/habits/internal/domain"
)

const (
	windowDays = 7
	trendWeeks = 8
)

// ErrInvalidMonth is returned by MonthlyHeatmap for months outside 1..12.
var ErrInvalidMonth = errors.New("month must be between 1 and 12")

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source that decides "today".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithLocation sets the time zone in which "today" is evaluated.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// Engine computes aggregate views over a HabitRepository.
type Engine struct {
	repo domain.HabitRepository
	now  func() time.Time
	loc  *time.Location
}

// NewEngine constructs an Engine reading from repo.
func NewEngine(repo domain.HabitRepository, opts ...Option) *Engine {
	e := &Engine{
		repo: repo,
		now:  time.Now,
		loc:  time.Local,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Today returns the current calendar day in the engine's location.
func (e *Engine) Today() dateutil.Day {
	return dateutil.FromTime(e.now(), e.loc)
}

// CompletionRate is the habit's completion percentage over the trailing
// seven days including today.
func (e *Engine) CompletionRate(ctx context.Context, habitID int64) (int, error) {
	snap, err := e.load(ctx)
	if err != nil {
		return 0, err
	}
	habit, ok := snap.habit(habitID)
	if !ok {
		return 0, domain.ErrHabitNotFound
	}
	return snap.trailingRate(habit, e.Today()), nil
}

// OverallCompletionRate sums scheduled and completed habit instances across
// every habit over the trailing seven days.
func (e *Engine) OverallCompletionRate(ctx context.Context) (int, error) {
	snap, err := e.load(ctx)
	if err != nil {
		return 0, err
	}
	return snap.overallRate(e.Today()), nil
}

// Statistics builds the dashboard snapshot.
func (e *Engine) Statistics(ctx context.Context) (domain.HabitStatistics, error) {
	snap, err := e.load(ctx)
	if err != nil {
		return domain.HabitStatistics{}, err
	}
	today := e.Today()

	out := domain.HabitStatistics{
		ActiveHabits:   len(snap.habits),
		CompletedToday: snap.completedOn[today],
		WeeklyStreak:   snap.overallRate(today),
	}
	for _, habit := range snap.habits {
		if habit.ScheduledOn(today.Weekday()) {
			out.TotalToday++
		}
		if _, longest := snap.streaks(habit, today); longest > out.LongestStreak {
			out.LongestStreak = longest
		}
	}
	return out, nil
}

// WeeklyCompletionData returns one point per day of the Sunday-based week
// containing today, Sunday first.
func (e *Engine) WeeklyCompletionData(ctx context.Context) ([]domain.WeeklyCompletionData, error) {
	snap, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	week := e.Today().Week()
	out := make([]domain.WeeklyCompletionData, 0, len(week))
	for _, day := range week {
		out = append(out, domain.WeeklyCompletionData{
			Day:            dateutil.WeekdayLabel(day.Weekday()),
			CompletionRate: snap.dayRate(day),
		})
	}
	return out, nil
}

// HabitPerformance returns each habit's trailing seven-day rate in habit id
// order. Ranking is left to the caller.
func (e *Engine) HabitPerformance(ctx context.Context) ([]domain.HabitPerformance, error) {
	snap, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	today := e.Today()
	out := make([]domain.HabitPerformance, 0, len(snap.habits))
	for _, habit := range snap.habits {
		out = append(out, domain.HabitPerformance{
			HabitID:        habit.ID,
			HabitName:      habit.Name,
			CompletionRate: snap.trailingRate(habit, today),
		})
	}
	return out, nil
}

// MonthlyHeatmap returns one entry per calendar day of the month, ascending.
func (e *Engine) MonthlyHeatmap(ctx context.Context, year int, month time.Month) ([]domain.MonthlyHeatmapData, error) {
	if month < time.January || month > time.December {
		return nil, ErrInvalidMonth
	}
	snap, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	days := dateutil.MonthDays(year, month)
	out := make([]domain.MonthlyHeatmapData, 0, len(days))
	for _, day := range days {
		out = append(out, domain.MonthlyHeatmapData{Date: day, Value: snap.dayRate(day)})
	}
	return out, nil
}

// HabitTrends returns eight seven-day buckets for one habit, oldest first,
// the last ending today.
func (e *Engine) HabitTrends(ctx context.Context, habitID int64) ([]domain.HabitTrendData, error) {
	snap, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	habit, ok := snap.habit(habitID)
	if !ok {
		return nil, domain.ErrHabitNotFound
	}
	today := e.Today()
	out := make([]domain.HabitTrendData, 0, trendWeeks)
	for offset := trendWeeks - 1; offset >= 0; offset-- {
		end := today.AddDays(-windowDays * offset)
		start := end.AddDays(-(windowDays - 1))
		out = append(out, domain.HabitTrendData{
			Week:           dateutil.RangeLabel(start, end),
			CompletionRate: snap.trailingRate(habit, end),
		})
	}
	return out, nil
}

// HabitComparison pairs each habit's current seven-day rate with the rate of
// the seven days before it, most improved first. Equal changes keep habit id
// order.
func (e *Engine) HabitComparison(ctx context.Context) ([]domain.HabitComparisonData, error) {
	snap, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	today := e.Today()
	out := make([]domain.HabitComparisonData, 0, len(snap.habits))
	for _, habit := range snap.habits {
		current := snap.trailingRate(habit, today)
		previous := snap.trailingRate(habit, today.AddDays(-windowDays))
		out = append(out, domain.HabitComparisonData{
			HabitID:      habit.ID,
			Name:         habit.Name,
			CurrentWeek:  current,
			PreviousWeek: previous,
			Change:       current - previous,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Change > out[j].Change })
	return out, nil
}

// HabitsWithCompletions joins every habit with its completion history and
// trailing seven-day rate.
func (e *Engine) HabitsWithCompletions(ctx context.Context) ([]domain.HabitWithCompletions, error) {
	snap, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	today := e.Today()
	out := make([]domain.HabitWithCompletions, 0, len(snap.habits))
	for _, habit := range snap.habits {
		completions := snap.byHabit[habit.ID]
		if completions == nil {
			completions = []domain.HabitCompletion{}
		}
		out = append(out, domain.HabitWithCompletions{
			Habit:          habit,
			Completions:    completions,
			CompletionRate: snap.trailingRate(habit, today),
		})
	}
	return out, nil
}

// Streaks reports current and longest runs of completed scheduled days per
// habit.
func (e *Engine) Streaks(ctx context.Context) ([]domain.HabitStreak, error) {
	snap, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	today := e.Today()
	out := make([]domain.HabitStreak, 0, len(snap.habits))
	for _, habit := range snap.habits {
		current, longest := snap.streaks(habit, today)
		out = append(out, domain.HabitStreak{
			HabitID:       habit.ID,
			HabitName:     habit.Name,
			CurrentStreak: current,
			LongestStreak: longest,
		})
	}
	return out, nil
}

func (e *Engine) load(ctx context.Context) (*snapshot, error) {
	habits, err := e.repo.ListHabits(ctx)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	completions, err := e.repo.ListCompletions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	return newSnapshot(habits, completions), nil
}

// Percent returns num/den as a whole percentage rounded half up, or 0 when
// den is not positive.
func Percent(num, den int) int {
	if den <= 0 {
		return 0
	}
	return (num*200 + den) / (2 * den)
}
