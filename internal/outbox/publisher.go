// Package outbox delivers habit domain events to Kafka.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/habits/internal/events"
)

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

// Envelope is the JSON value written for every event.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// KafkaPublisher implements events.Publisher on top of a topic writer.
type KafkaPublisher struct {
	producer messageWriter
	topic    string
	timeout  time.Duration
}

var _ events.Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher constructs a publisher writing to topic. A positive
// timeout bounds each write independently of the caller's context.
func NewKafkaPublisher(producer messageWriter, topic string, timeout time.Duration) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, timeout: timeout}
}

// Publish encodes the event and writes it synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, event events.Event) error {
	msg, err := encode(event)
	if err != nil {
		failedCounter.WithLabelValues(event.Type).Inc()
		return err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	err = p.producer.WriteMessages(ctx, p.topic, msg)
	publishDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		failedCounter.WithLabelValues(event.Type).Inc()
		return fmt.Errorf("publish %s to %s: %w", event.Type, p.topic, err)
	}
	deliveredCounter.WithLabelValues(event.Type).Inc()
	return nil
}

func encode(event events.Event) (kafka.Message, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s payload: %w", event.Type, err)
	}
	value, err := json.Marshal(Envelope{
		EventID:    event.ID,
		EventType:  event.Type,
		OccurredAt: event.OccurredAt.UTC(),
		Payload:    payload,
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s envelope: %w", event.Type, err)
	}
	return kafka.Message{
		Key:   []byte(event.Key),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}, nil
}
