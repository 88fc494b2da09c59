// Package memory provides the volatile in-process habit store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"example.com/habits/internal/dateutil"
	"example.com/habits/internal/domain"
)

var _ domain.HabitRepository = (*Repository)(nil)

// Repository stores habits and completions in memory. It is safe for
// concurrent use; every method runs under one lock so a mutation never
// interleaves with a read.
type Repository struct {
	mu               sync.RWMutex
	habits           map[int64]domain.Habit
	completions      map[int64]domain.HabitCompletion
	nextHabitID      int64
	nextCompletionID int64
}

// NewRepository constructs an empty repository.
func NewRepository() *Repository {
	return &Repository{
		habits:           make(map[int64]domain.Habit),
		completions:      make(map[int64]domain.HabitCompletion),
		nextHabitID:      1,
		nextCompletionID: 1,
	}
}

// CreateHabit implements domain.HabitRepository.
func (r *Repository) CreateHabit(ctx context.Context, input domain.HabitInput, createdAt time.Time) (domain.Habit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	habit := input.NewHabit(r.nextHabitID, createdAt.UTC())
	r.nextHabitID++
	r.habits[habit.ID] = habit
	return habit.Clone(), nil
}

// GetHabit implements domain.HabitRepository.
func (r *Repository) GetHabit(ctx context.Context, id int64) (*domain.Habit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	habit, ok := r.habits[id]
	if !ok {
		return nil, nil
	}
	out := habit.Clone()
	return &out, nil
}

// ListHabits implements domain.HabitRepository.
func (r *Repository) ListHabits(ctx context.Context) ([]domain.Habit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Habit, 0, len(r.habits))
	for _, habit := range r.habits {
		out = append(out, habit.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateHabit implements domain.HabitRepository.
func (r *Repository) UpdateHabit(ctx context.Context, id int64, patch domain.HabitPatch) (*domain.Habit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.habits[id]
	if !ok {
		return nil, nil
	}
	updated := existing.Apply(patch)
	r.habits[id] = updated
	out := updated.Clone()
	return &out, nil
}

// DeleteHabit implements domain.HabitRepository.
func (r *Repository) DeleteHabit(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.habits[id]; !ok {
		return false, nil
	}
	delete(r.habits, id)
	for cid, completion := range r.completions {
		if completion.HabitID == id {
			delete(r.completions, cid)
		}
	}
	return true, nil
}

// ListCompletions implements domain.HabitRepository.
func (r *Repository) ListCompletions(ctx context.Context) ([]domain.HabitCompletion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.HabitCompletion, 0, len(r.completions))
	for _, completion := range r.completions {
		out = append(out, cloneCompletion(completion))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetCompletionByHabitAndDate implements domain.HabitRepository. When several
// records share the key, the one with the lowest id wins.
func (r *Repository) GetCompletionByHabitAndDate(ctx context.Context, habitID int64, day dateutil.Day) (*domain.HabitCompletion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	found, ok := r.findLocked(habitID, day)
	if !ok {
		return nil, nil
	}
	out := cloneCompletion(found)
	return &out, nil
}

// UpsertCompletion implements domain.HabitRepository.
func (r *Repository) UpsertCompletion(ctx context.Context, input domain.CompletionInput) (domain.HabitCompletion, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.habits[input.HabitID]; !ok {
		return domain.HabitCompletion{}, false, domain.ErrHabitNotFound
	}

	if existing, ok := r.findLocked(input.HabitID, input.Date); ok {
		existing.Completed = input.Completed
		r.completions[existing.ID] = existing
		return cloneCompletion(existing), false, nil
	}

	completion := domain.HabitCompletion{
		ID:        r.nextCompletionID,
		HabitID:   input.HabitID,
		Date:      input.Date,
		Completed: input.Completed,
	}
	if input.UserID != nil {
		uid := *input.UserID
		completion.UserID = &uid
	}
	r.nextCompletionID++
	r.completions[completion.ID] = completion
	return cloneCompletion(completion), true, nil
}

// Reset implements domain.HabitRepository.
func (r *Repository) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.habits = make(map[int64]domain.Habit)
	r.completions = make(map[int64]domain.HabitCompletion)
	r.nextHabitID = 1
	r.nextCompletionID = 1
	return nil
}

func (r *Repository) findLocked(habitID int64, day dateutil.Day) (domain.HabitCompletion, bool) {
	var (
		found domain.HabitCompletion
		ok    bool
	)
	for _, completion := range r.completions {
		if completion.HabitID != habitID || completion.Date != day {
			continue
		}
		if !ok || completion.ID < found.ID {
			found, ok = completion, true
		}
	}
	return found, ok
}

func cloneCompletion(c domain.HabitCompletion) domain.HabitCompletion {
	if c.UserID != nil {
		uid := *c.UserID
		c.UserID = &uid
	}
	return c
}
