package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	id "stagepass/pkg/domain"
)

// KafkaSink publishes audit events to a Kafka topic using franz-go.
// Events are keyed by user ID so per-holder ordering survives partitioning.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink connects a producer to the given brokers.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

// kafkaPayload is the wire shape published to the topic.
type kafkaPayload struct {
	ID        string            `json:"id"`
	Action    string            `json:"action"`
	Timestamp string            `json:"timestamp"`
	UserID    string            `json:"user_id,omitempty"`
	EventID   string            `json:"event_id,omitempty"`
	TicketID  string            `json:"ticket_id,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// Emit produces the event synchronously so callers can surface broker
// failures; the publisher treats those as non-fatal.
func (s *KafkaSink) Emit(ctx context.Context, event Event) error {
	payload := kafkaPayload{
		ID:        event.ID,
		Action:    string(event.Action),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		RequestID: event.RequestID,
		TicketID:  string(event.TicketID),
		Detail:    event.Detail,
	}
	if !event.UserID.IsZero() {
		payload.UserID = event.UserID.String()
	}
	if !event.EventID.IsZero() {
		payload.EventID = event.EventID.String()
	}

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   kafkaKey(event.UserID),
		Value: value,
	}
	return s.client.ProduceSync(ctx, record).FirstErr()
}

// Close flushes and releases the producer.
func (s *KafkaSink) Close() {
	s.client.Close()
}

func kafkaKey(userID id.UserID) []byte {
	if userID.IsZero() {
		return nil
	}
	return []byte(userID.String())
}
