package outbox

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

const defaultBatchTimeout = 10 * time.Millisecond

// KafkaProducer keeps one writer per habit event topic. Writes are
// synchronous so the caller sees broker errors.
type KafkaProducer struct {
	addr         net.Addr
	batchTimeout time.Duration
	autoCreate   bool

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// ProducerOption customises a KafkaProducer.
type ProducerOption func(*KafkaProducer)

// WithBatchTimeout bounds how long a write waits for its batch to fill.
func WithBatchTimeout(d time.Duration) ProducerOption {
	return func(p *KafkaProducer) {
		if d > 0 {
			p.batchTimeout = d
		}
	}
}

// WithoutTopicCreation stops writers from creating missing topics.
func WithoutTopicCreation() ProducerOption {
	return func(p *KafkaProducer) { p.autoCreate = false }
}

// NewKafkaProducer creates a producer for brokers. Writers are opened on
// first use of each topic.
func NewKafkaProducer(brokers []string, opts ...ProducerOption) *KafkaProducer {
	p := &KafkaProducer{
		addr:         kafka.TCP(brokers...),
		batchTimeout: defaultBatchTimeout,
		autoCreate:   true,
		writers:      make(map[string]*kafka.Writer),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WriteMessages writes msgs to topic. Messages keyed by habit land on the
// same partition.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	return p.writer(topic).WriteMessages(ctx, msgs...)
}

func (p *KafkaProducer) writer(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	w, ok := p.writers[topic]
	if !ok {
		w = &kafka.Writer{
			Addr:                   p.addr,
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			Compression:            kafka.Snappy,
			BatchTimeout:           p.batchTimeout,
			AllowAutoTopicCreation: p.autoCreate,
		}
		p.writers[topic] = w
	}
	return w
}

// Close flushes and closes every writer opened so far.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	writers := p.writers
	p.writers = make(map[string]*kafka.Writer)
	p.mu.Unlock()

	var errs []error
	for _, w := range writers {
		errs = append(errs, w.Close())
	}
	return errors.Join(errs...)
}
