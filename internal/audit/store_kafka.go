package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"qrpass/internal/platform/kafka/producer"
)

// MessageProducer is the subset of the kafka producer the sink needs.
type MessageProducer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaStore publishes each event as a JSON record. Records are keyed by
// credential id (or device id) so one credential's history stays ordered
// within a partition.
type KafkaStore struct {
	producer MessageProducer
	topic    string
}

func NewKafkaStore(p MessageProducer, topic string) *KafkaStore {
	return &KafkaStore{producer: p, topic: topic}
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	key := event.CredentialID
	if key == "" {
		key = event.DeviceID
	}
	msg := &producer.Message{
		Topic: s.topic,
		Key:   []byte(key),
		Value: value,
		Headers: map[string]string{
			"action": string(event.Action),
		},
	}
	if err := s.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}
