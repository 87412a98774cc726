package audit

//go:generate mockgen -source=sink.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"qrpass/internal/platform/kafka/consumer"
)

// recordNamespace seeds the deterministic event ids derived from record positions.
var recordNamespace = uuid.MustParse("6f1c3a52-9d0e-4f57-8b1e-2a7c54d0e913")

// IdempotentWriter stores an event under a caller-chosen id.
type IdempotentWriter interface {
	AppendWithID(ctx context.Context, id uuid.UUID, event Event) error
}

// Sink consumes the audit topic into durable storage. Each record gets an id
// derived from topic, partition and offset, so redelivery never duplicates.
type Sink struct {
	writer IdempotentWriter
	logger *slog.Logger
}

func NewSink(writer IdempotentWriter, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{writer: writer, logger: logger}
}

// Handle implements consumer.Handler. Malformed records are logged and
// skipped; storage failures are returned so the record is retried.
func (s *Sink) Handle(ctx context.Context, msg *consumer.Message) error {
	var event Event
	if err := json.Unmarshal(msg.Value, &event); err != nil || event.Action == "" {
		s.logger.ErrorContext(ctx, "skipping malformed audit record",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = msg.Timestamp
	}

	id := RecordID(msg.Topic, msg.Partition, msg.Offset)
	if err := s.writer.AppendWithID(ctx, id, event); err != nil {
		return fmt.Errorf("store audit event: %w", err)
	}
	s.logger.DebugContext(ctx, "stored audit event", "event_id", id, "action", event.Action)
	return nil
}

// RecordID is the stable event id for a record position.
func RecordID(topic string, partition int32, offset int64) uuid.UUID {
	return uuid.NewSHA1(recordNamespace, fmt.Appendf(nil, "%s/%d/%d", topic, partition, offset))
}
