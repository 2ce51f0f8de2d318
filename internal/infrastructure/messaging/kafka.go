// Package messaging forwards outbox events to Kafka.
package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"restopos/internal/config"
	"restopos/internal/infrastructure/storage/postgres"
	"restopos/pkg/logger"
)

// Header keys set on every produced message.
const (
	HeaderEventType     = "event-type"
	HeaderAggregateType = "aggregate-type"
	HeaderMessageID     = "message-id"
)

var _ postgres.OutboxHandler = (*KafkaSink)(nil)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes outbox messages keyed by aggregate id, so events of one
// item stay ordered within a partition.
type KafkaSink struct {
	writer  messageWriter
	timeout time.Duration
}

// NewKafkaSink creates a synchronous producer; the relay retries on error.
func NewKafkaSink(cfg config.KafkaConfig) *KafkaSink {
	return newKafkaSink(&kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           cfg.WriteTimeout,
	}, cfg.WriteTimeout)
}

func newKafkaSink(w messageWriter, timeout time.Duration) *KafkaSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KafkaSink{writer: w, timeout: timeout}
}

func (s *KafkaSink) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.writer.WriteMessages(ctx, toKafkaMessage(msg))
	if err != nil {
		return fmt.Errorf("kafka write %s: %w", msg.EventType, err)
	}
	logger.Debug(ctx, "event forwarded to kafka", "event_type", msg.EventType, "message_id", msg.ID)
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

func toKafkaMessage(msg *postgres.OutboxMessage) kafka.Message {
	return kafka.Message{
		Key:   []byte(msg.AggregateID.String()),
		Value: msg.Payload,
		Time:  msg.CreatedAt,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(msg.EventType)},
			{Key: HeaderAggregateType, Value: []byte(msg.AggregateType)},
			{Key: HeaderMessageID, Value: []byte(msg.ID.String())},
		},
	}
}
