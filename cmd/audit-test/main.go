// Package main floods the audit publisher to check buffering and delivery
// against the configured store. With kafka.brokers set, events go to the
// audit topic; otherwise they land in memory and are counted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"qrpass/internal/audit"
	"qrpass/internal/platform/config"
	"qrpass/internal/platform/kafka/producer"
	"qrpass/internal/platform/logger"
	"qrpass/pkg/platform/privacy"
)

func main() {
	events := flag.Int("events", 20, "Number of events to emit")
	buffer := flag.Int("buffer", 10, "Async buffer size; small values exercise drops")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New("debug")

	memory := audit.NewInMemoryStore()
	var store audit.Store = memory
	if cfg.Kafka.Brokers != "" {
		p, err := producer.New(cfg.Kafka, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "kafka producer: %v\n", err)
			os.Exit(1)
		}
		defer p.Close() //nolint:errcheck // process exit
		store = audit.NewKafkaStore(p, cfg.Kafka.AuditTopic)
		fmt.Printf("Publishing to kafka topic %s\n", cfg.Kafka.AuditTopic)
	}

	publisher := audit.NewPublisher(store,
		audit.WithAsyncBuffer(*buffer),
		audit.WithPublisherLogger(log),
	)

	ctx := context.Background()
	fmt.Printf("Emitting %d scan events (buffer %d)...\n", *events, *buffer)
	for i := 0; i < *events; i++ {
		event := audit.Event{
			Action:       audit.ActionScanAccepted,
			CredentialID: uuid.NewString(),
			OwnerMobile:  privacy.MaskMobile(fmt.Sprintf("98765%05d", i)),
			DeviceID:     "audit-test",
			Decision:     "accepted",
			RequestID:    uuid.NewString(),
			Timestamp:    time.Now(),
		}
		if err := publisher.Emit(ctx, event); err != nil {
			fmt.Printf("  event %d failed: %v\n", i+1, err)
		}
	}
	publisher.Close()

	if cfg.Kafka.Brokers == "" {
		fmt.Printf("Stored %d of %d events; the rest were dropped by the full buffer\n", len(memory.All()), *events)
	}
}
