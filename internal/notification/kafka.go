package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/noah-isme/eventhub-api/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDispatcher publishes notifications to a topic keyed by event ID so
// consumers see one event's notifications in order.
type KafkaDispatcher struct {
	writer messageWriter
}

// NewKafkaDispatcher builds a dispatcher with its own writer.
func NewKafkaDispatcher(brokers []string, topic string) *KafkaDispatcher {
	return &KafkaDispatcher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}}
}

// Dispatch writes a single message carrying the notification JSON.
func (d *KafkaDispatcher) Dispatch(ctx context.Context, notification models.Notification) error {
	value, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(notification.EventID),
		Value:   value,
		Headers: []kafka.Header{{Key: "type", Value: []byte(notification.Type)}},
		Time:    time.Now().UTC(),
	}
	if err := d.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

// Close flushes pending writes.
func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}
