package stats

import (
	"example.com/habits/internal/dateutil"
	"example.com/habits/internal/domain"
)

// snapshot indexes one consistent read of the store. done holds the days
// each habit has a completed=true record for; completedOn counts those
// records per day across all habits.
type snapshot struct {
	habits      []domain.Habit
	byID        map[int64]int
	done        map[int64]map[dateutil.Day]bool
	completedOn map[dateutil.Day]int
	byHabit     map[int64][]domain.HabitCompletion
	earliest    map[int64]dateutil.Day
}

func newSnapshot(habits []domain.Habit, completions []domain.HabitCompletion) *snapshot {
	s := &snapshot{
		habits:      habits,
		byID:        make(map[int64]int, len(habits)),
		done:        make(map[int64]map[dateutil.Day]bool, len(habits)),
		completedOn: make(map[dateutil.Day]int),
		byHabit:     make(map[int64][]domain.HabitCompletion, len(habits)),
		earliest:    make(map[int64]dateutil.Day, len(habits)),
	}
	for i, habit := range habits {
		s.byID[habit.ID] = i
	}
	for _, c := range completions {
		if _, ok := s.byID[c.HabitID]; !ok {
			continue
		}
		s.byHabit[c.HabitID] = append(s.byHabit[c.HabitID], c)
		if !c.Completed {
			continue
		}
		days := s.done[c.HabitID]
		if days == nil {
			days = make(map[dateutil.Day]bool)
			s.done[c.HabitID] = days
		}
		days[c.Date] = true
		s.completedOn[c.Date]++
		if first, ok := s.earliest[c.HabitID]; !ok || c.Date.Before(first) {
			s.earliest[c.HabitID] = c.Date
		}
	}
	return s
}

func (s *snapshot) habit(id int64) (domain.Habit, bool) {
	i, ok := s.byID[id]
	if !ok {
		return domain.Habit{}, false
	}
	return s.habits[i], true
}

func (s *snapshot) completed(habitID int64, day dateutil.Day) bool {
	return s.done[habitID][day]
}

// trailingRate is the habit's rate over the seven days ending on end.
func (s *snapshot) trailingRate(habit domain.Habit, end dateutil.Day) int {
	var scheduled, completed int
	for i := 0; i < windowDays; i++ {
		day := end.AddDays(-i)
		if !habit.ScheduledOn(day.Weekday()) {
			continue
		}
		scheduled++
		if s.completed(habit.ID, day) {
			completed++
		}
	}
	return Percent(completed, scheduled)
}

func (s *snapshot) overallRate(end dateutil.Day) int {
	var scheduled, completed int
	for i := 0; i < windowDays; i++ {
		day := end.AddDays(-i)
		for _, habit := range s.habits {
			if !habit.ScheduledOn(day.Weekday()) {
				continue
			}
			scheduled++
			if s.completed(habit.ID, day) {
				completed++
			}
		}
	}
	return Percent(completed, scheduled)
}

// dayRate divides every completed record on the day by the number of habits
// scheduled that weekday.
func (s *snapshot) dayRate(day dateutil.Day) int {
	var scheduled int
	for _, habit := range s.habits {
		if habit.ScheduledOn(day.Weekday()) {
			scheduled++
		}
	}
	return Percent(s.completedOn[day], scheduled)
}

// streaks walks scheduled days from the habit's first completion up to
// today. Unscheduled days neither extend nor break a run, and today only
// breaks the current run once it has passed.
func (s *snapshot) streaks(habit domain.Habit, today dateutil.Day) (current, longest int) {
	first, ok := s.earliest[habit.ID]
	if !ok || first.After(today) {
		return 0, 0
	}

	run := 0
	for day := first; !day.After(today); day = day.AddDays(1) {
		if !habit.ScheduledOn(day.Weekday()) {
			continue
		}
		switch {
		case s.completed(habit.ID, day):
			run++
			if run > longest {
				longest = run
			}
		case day != today:
			run = 0
		}
	}

	for day := today; !day.Before(first); day = day.AddDays(-1) {
		if !habit.ScheduledOn(day.Weekday()) {
			continue
		}
		if s.completed(habit.ID, day) {
			current++
			continue
		}
		if day == today {
			continue
		}
		break
	}
	return current, longest
}
