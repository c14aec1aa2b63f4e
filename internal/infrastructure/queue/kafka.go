package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
)

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// EventProducer defines the interface for exporting domain events
type EventProducer interface {
	PublishEvent(ctx context.Context, event model.DomainEvent) error
	Close() error
}

// KafkaProducer implements EventProducer using Kafka
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer creates a new Kafka producer. Returns nil when no
// brokers are configured: event export is optional.
func NewKafkaProducer(config KafkaConfig) *KafkaProducer {
	if len(config.Brokers) == 0 {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{}, // Hash by event kind keeps per-kind ordering
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaProducer{writer: writer}
}

type eventEnvelope struct {
	Kind    model.EventKind   `json:"kind"`
	At      time.Time         `json:"at"`
	Payload model.DomainEvent `json:"payload"`
}

// PublishEvent sends one domain event to the configured topic.
func (p *KafkaProducer) PublishEvent(ctx context.Context, event model.DomainEvent) error {
	data, err := json.Marshal(eventEnvelope{
		Kind:    event.Kind(),
		At:      event.OccurredAt(),
		Payload: event,
	})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Kind()),
		Value: data,
		Time:  time.Now(),
	})
}

// Close closes the producer
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
