// Package events defines the domain event payloads emitted on habit mutations
// and the publishing contract used by the domain service.
package events

import (
	"context"
	"time"
)

// Event types carried in the event_type header.
const (
	TypeHabitCreated       = "habit.created"
	TypeHabitUpdated       = "habit.updated"
	TypeHabitDeleted       = "habit.deleted"
	TypeCompletionRecorded = "completion.recorded"
	TypeDataReset          = "data.reset"
)

// Event is an envelope handed to a Publisher. Key selects the Kafka partition
// so all events for one habit stay ordered.
type Event struct {
	ID         string
	Type       string
	Key        string
	OccurredAt time.Time
	Payload    interface{}
}

// Publisher delivers events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

// Publish performs no action.
func (NoopPublisher) Publish(context.Context, Event) error { return nil }

// HabitChanged is emitted for habit.created and habit.updated.
type HabitChanged struct {
	HabitID       int64     `json:"habit_id"`
	Name          string    `json:"name"`
	Color         string    `json:"color"`
	FrequencyDays []int     `json:"frequency_days"`
	ReminderTime  *string   `json:"reminder_time,omitempty"`
	UserID        *int64    `json:"user_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// HabitDeleted is emitted after a habit and its completions are removed.
type HabitDeleted struct {
	HabitID    int64     `json:"habit_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CompletionRecorded is emitted for every upsert on the completion write path.
type CompletionRecorded struct {
	CompletionID int64     `json:"completion_id"`
	HabitID      int64     `json:"habit_id"`
	Date         string    `json:"date"`
	Completed    bool      `json:"completed"`
	Created      bool      `json:"created"`
	UserID       *int64    `json:"user_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// DataReset is emitted when every habit and completion has been cleared.
type DataReset struct {
	OccurredAt time.Time `json:"occurred_at"`
}
