// Package domain defines habits, completions and the service that mutates them.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"example.com/habits/internal/dateutil"
	"example.com/habits/internal/events"
	"example.com/habits/internal/observability"
)

var (
	// ErrHabitNotFound is returned when a referenced habit does not exist.
	ErrHabitNotFound = errors.New("habit not found")
	// ErrInvalidInput marks inputs the service refuses regardless of transport validation.
	ErrInvalidInput = errors.New("invalid input")
)

// HabitRepository is the record store. Implementations own both collections
// exclusively; deleting a habit must cascade to its completions.
type HabitRepository interface {
	CreateHabit(ctx context.Context, input HabitInput, createdAt time.Time) (Habit, error)
	// GetHabit returns nil, nil when the habit does not exist.
	GetHabit(ctx context.Context, id int64) (*Habit, error)
	ListHabits(ctx context.Context) ([]Habit, error)
	// UpdateHabit returns nil, nil when the habit does not exist.
	UpdateHabit(ctx context.Context, id int64, patch HabitPatch) (*Habit, error)
	DeleteHabit(ctx context.Context, id int64) (bool, error)

	ListCompletions(ctx context.Context) ([]HabitCompletion, error)
	// GetCompletionByHabitAndDate returns nil, nil when no record exists.
	GetCompletionByHabitAndDate(ctx context.Context, habitID int64, day dateutil.Day) (*HabitCompletion, error)
	// UpsertCompletion replaces the completed flag of the (habit, day) record
	// in place or creates it. The bool reports whether a record was created.
	UpsertCompletion(ctx context.Context, input CompletionInput) (HabitCompletion, bool, error)

	// Reset clears both collections and restarts id assignment at 1.
	Reset(ctx context.Context) error
}

// Option configures optional Service behaviour.
type Option func(*Service)

// WithClock overrides the time source used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger overrides the logger used to report publish failures.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service orchestrates habit and completion workflows.
type Service struct {
	repo      HabitRepository
	publisher events.Publisher
	now       func() time.Time
	logger    logrus.FieldLogger
}

// NewService constructs a Service. A nil publisher disables event emission.
func NewService(repo HabitRepository, publisher events.Publisher, opts ...Option) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	s := &Service{
		repo:      repo,
		publisher: publisher,
		now:       time.Now,
		logger:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repository exposes the underlying store for read-side aggregation.
func (s *Service) Repository() HabitRepository {
	return s.repo
}

// CreateHabit stores a new habit.
func (s *Service) CreateHabit(ctx context.Context, input HabitInput) (*Habit, error) {
	habit, err := s.repo.CreateHabit(ctx, input, s.now())
	if err != nil {
		return nil, fmt.Errorf("create habit: %w", err)
	}
	observability.RecordHabitCreated()
	s.publish(ctx, events.TypeHabitCreated, habitKey(habit.ID), habitChanged(habit, s.now()))
	return &habit, nil
}

// GetHabit fetches a habit by ID.
func (s *Service) GetHabit(ctx context.Context, id int64) (*Habit, error) {
	habit, err := s.repo.GetHabit(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get habit %d: %w", id, err)
	}
	if habit == nil {
		return nil, ErrHabitNotFound
	}
	return habit, nil
}

// ListHabits returns every habit ordered by ID.
func (s *Service) ListHabits(ctx context.Context) ([]Habit, error) {
	return s.repo.ListHabits(ctx)
}

// UpdateHabit merges the patch onto the stored habit.
func (s *Service) UpdateHabit(ctx context.Context, id int64, patch HabitPatch) (*Habit, error) {
	habit, err := s.repo.UpdateHabit(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("update habit %d: %w", id, err)
	}
	if habit == nil {
		return nil, ErrHabitNotFound
	}
	s.publish(ctx, events.TypeHabitUpdated, habitKey(habit.ID), habitChanged(*habit, s.now()))
	return habit, nil
}

// DeleteHabit removes the habit and all of its completions.
func (s *Service) DeleteHabit(ctx context.Context, id int64) error {
	deleted, err := s.repo.DeleteHabit(ctx, id)
	if err != nil {
		return fmt.Errorf("delete habit %d: %w", id, err)
	}
	if !deleted {
		return ErrHabitNotFound
	}
	observability.RecordHabitDeleted()
	s.publish(ctx, events.TypeHabitDeleted, habitKey(id), events.HabitDeleted{HabitID: id, OccurredAt: s.now().UTC()})
	return nil
}

// ListCompletions returns every completion record.
func (s *Service) ListCompletions(ctx context.Context) ([]HabitCompletion, error) {
	return s.repo.ListCompletions(ctx)
}

// GetCompletion returns the (habit, day) record, or nil when none exists.
func (s *Service) GetCompletion(ctx context.Context, habitID int64, day dateutil.Day) (*HabitCompletion, error) {
	return s.repo.GetCompletionByHabitAndDate(ctx, habitID, day)
}

// RecordCompletion is the upsert-by-date write path. It reports whether a new
// record was created.
func (s *Service) RecordCompletion(ctx context.Context, input CompletionInput) (*HabitCompletion, bool, error) {
	if input.Date.IsZero() {
		return nil, false, fmt.Errorf("%w: completion date is required", ErrInvalidInput)
	}

	habit, err := s.repo.GetHabit(ctx, input.HabitID)
	if err != nil {
		return nil, false, fmt.Errorf("get habit %d: %w", input.HabitID, err)
	}
	if habit == nil {
		return nil, false, ErrHabitNotFound
	}

	completion, created, err := s.repo.UpsertCompletion(ctx, input)
	if err != nil {
		if errors.Is(err, ErrHabitNotFound) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("upsert completion: %w", err)
	}

	now := s.now()
	observability.RecordCompletion(now)
	s.publish(ctx, events.TypeCompletionRecorded, habitKey(completion.HabitID), events.CompletionRecorded{
		CompletionID: completion.ID,
		HabitID:      completion.HabitID,
		Date:         completion.Date.String(),
		Completed:    completion.Completed,
		Created:      created,
		UserID:       completion.UserID,
		OccurredAt:   now.UTC(),
	})
	return &completion, created, nil
}

// ResetAllData clears every habit and completion. Irreversible.
func (s *Service) ResetAllData(ctx context.Context) error {
	if err := s.repo.Reset(ctx); err != nil {
		return fmt.Errorf("reset data: %w", err)
	}
	observability.SetHabitCount(0)
	s.publish(ctx, events.TypeDataReset, "reset", events.DataReset{OccurredAt: s.now().UTC()})
	return nil
}

// publish never fails the caller; delivery problems are logged.
func (s *Service) publish(ctx context.Context, eventType, key string, payload interface{}) {
	event := events.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: s.now().UTC(),
		Payload:    payload,
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": eventType,
			"event_id":   event.ID,
		}).Warn("failed to publish domain event")
	}
}

func habitKey(id int64) string {
	return fmt.Sprintf("habit-%d", id)
}

func habitChanged(h Habit, now time.Time) events.HabitChanged {
	return events.HabitChanged{
		HabitID:       h.ID,
		Name:          h.Name,
		Color:         h.Color,
		FrequencyDays: h.FrequencyDays,
		ReminderTime:  h.ReminderTime,
		UserID:        h.UserID,
		OccurredAt:    now.UTC(),
	}
}
