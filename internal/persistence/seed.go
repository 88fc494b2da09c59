// Package persistence holds backend-independent helpers for habit stores.
package persistence

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"example.com/habits/internal/dateutil"
	"example.com/habits/internal/domain"
)

// SeedDays is how many days of history Seed generates, ending today.
const SeedDays = 14

type sampleHabit struct {
	input  domain.HabitInput
	chance float64
}

func sampleHabits() []sampleHabit {
	str := func(s string) *string { return &s }
	weekdays := []int{1, 2, 3, 4, 5}
	everyDay := []int{0, 1, 2, 3, 4, 5, 6}

	return []sampleHabit{
		{domain.HabitInput{Name: "Morning Workout", Description: str("30 minutes of exercise"), Color: str("#4F46E5"), FrequencyDays: weekdays, ReminderTime: str("07:00")}, 0.75},
		{domain.HabitInput{Name: "Read Book", Description: str("20 pages daily"), Color: str("#10B981"), FrequencyDays: everyDay, ReminderTime: str("21:00")}, 0.9},
		{domain.HabitInput{Name: "Meditation", Description: str("10 minutes of mindfulness"), Color: str("#F59E0B"), FrequencyDays: everyDay, ReminderTime: str("08:00")}, 0.6},
		{domain.HabitInput{Name: "Drink Water", Description: str("8 glasses daily"), Color: str("#4F46E5"), FrequencyDays: everyDay}, 1.0},
		{domain.HabitInput{Name: "Journal", Description: str("Write daily thoughts"), Color: str("#DC2626"), FrequencyDays: weekdays, ReminderTime: str("20:00")}, 0.3},
	}
}

// SeedOptions controls sample data generation.
type SeedOptions struct {
	Now      time.Time
	Location *time.Location
	// Rand decides which scheduled days are completed. Nil seeds from Now.
	Rand *rand.Rand
}

// Seed inserts the sample habits plus completions for the scheduled days of
// the last SeedDays days. It returns the number of habits created.
func Seed(ctx context.Context, repo domain.HabitRepository, opts SeedOptions) (int, error) {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(opts.Now.UnixNano()))
	}
	today := dateutil.FromTime(opts.Now, opts.Location)

	samples := sampleHabits()
	for _, sample := range samples {
		habit, err := repo.CreateHabit(ctx, sample.input, opts.Now)
		if err != nil {
			return 0, fmt.Errorf("seed habit %q: %w", sample.input.Name, err)
		}
		for i := SeedDays - 1; i >= 0; i-- {
			day := today.AddDays(-i)
			if !habit.ScheduledOn(day.Weekday()) {
				continue
			}
			completed := opts.Rand.Float64() < sample.chance
			if _, _, err := repo.UpsertCompletion(ctx, domain.CompletionInput{
				HabitID:   habit.ID,
				Date:      day,
				Completed: completed,
			}); err != nil {
				return 0, fmt.Errorf("seed completion for %q on %s: %w", habit.Name, day, err)
			}
		}
	}
	return len(samples), nil
}
