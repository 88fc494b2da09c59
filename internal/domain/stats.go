package domain

import "example.com/habits/internal/dateutil"

// HabitWithCompletions joins a habit with its completion history and its
// trailing seven-day completion rate.
type HabitWithCompletions struct {
	Habit
	Completions    []HabitCompletion `json:"completions"`
	CompletionRate int               `json:"completionRate"`
}

// HabitStatistics is the global dashboard snapshot.
//
// WeeklyStreak is a rolling seven-day completion percentage across all
// habits, not a count of days.
type HabitStatistics struct {
	ActiveHabits   int `json:"activeHabits"`
	CompletedToday int `json:"completedToday"`
	TotalToday     int `json:"totalToday"`
	WeeklyStreak   int `json:"weeklyStreak"`
	LongestStreak  int `json:"longestStreak"`
}

// WeeklyCompletionData is one day of the current Sunday-based week.
type WeeklyCompletionData struct {
	Day            string `json:"day"`
	CompletionRate int    `json:"completionRate"`
}

// HabitPerformance is a habit's trailing seven-day completion rate.
type HabitPerformance struct {
	HabitID        int64  `json:"habitId"`
	HabitName      string `json:"habitName"`
	CompletionRate int    `json:"completionRate"`
}

// MonthlyHeatmapData is one calendar day of a month heatmap.
type MonthlyHeatmapData struct {
	Date  dateutil.Day `json:"date"`
	Value int          `json:"value"`
}

// HabitTrendData is one week of a habit's eight-week trend.
type HabitTrendData struct {
	Week           string `json:"week"`
	CompletionRate int    `json:"completionRate"`
}

// HabitComparisonData compares a habit's current and previous seven-day rates.
// Change is in signed percentage points.
type HabitComparisonData struct {
	HabitID      int64  `json:"habitId"`
	Name         string `json:"name"`
	CurrentWeek  int    `json:"currentWeek"`
	PreviousWeek int    `json:"previousWeek"`
	Change       int    `json:"change"`
}

// HabitStreak reports run lengths of consecutive completed scheduled days.
type HabitStreak struct {
	HabitID       int64  `json:"habitId"`
	HabitName     string `json:"habitName"`
	CurrentStreak int    `json:"currentStreak"`
	LongestStreak int    `json:"longestStreak"`
}
