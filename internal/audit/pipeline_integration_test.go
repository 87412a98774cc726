//go:build integration

package audit_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"qrpass/internal/audit"
	"qrpass/internal/platform/config"
	"qrpass/internal/platform/kafka/consumer"
	"qrpass/internal/platform/kafka/producer"
	"qrpass/pkg/testutil/containers"
)

const auditTopic = "qrpass.audit.test"

// KafkaPipelineSuite publishes through KafkaStore and drains the topic with
// the Sink into postgres.
type KafkaPipelineSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	postgres *containers.PostgresContainer
	producer *producer.Producer
	store    *audit.PostgresStore
	logger   *slog.Logger
}

func TestKafkaPipelineSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaPipelineSuite))
}

func (s *KafkaPipelineSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.kafka = mgr.GetKafka(s.T())
	s.postgres = mgr.GetPostgres(s.T())
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	s.store = audit.NewPostgresStore(s.postgres.DB)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.Require().NoError(s.kafka.CreateTopic(ctx, auditTopic, 3, 1))

	p, err := producer.New(config.Kafka{
		Brokers:         s.kafka.Brokers,
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	}, s.logger)
	s.Require().NoError(err)
	s.producer = p
}

func (s *KafkaPipelineSuite) TearDownSuite() {
	if s.producer != nil {
		_ = s.producer.Close()
	}
}

func (s *KafkaPipelineSuite) TestEventsReachPostgres() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "audit_events"))

	publisher := audit.NewPublisher(audit.NewKafkaStore(s.producer, auditTopic))
	for _, e := range []audit.Event{
		{Action: audit.ActionCredentialIssued, CredentialID: "c1", DeviceID: "phone-1"},
		{Action: audit.ActionScanAccepted, CredentialID: "c1", DeviceID: "gate-1"},
		{Action: audit.ActionCredentialDisabled, CredentialID: "c1"},
	} {
		s.Require().NoError(publisher.Emit(ctx, e))
	}
	s.Eventually(func() bool {
		n, err := s.kafka.EndOffset(ctx, auditTopic)
		return err == nil && n == 3
	}, 15*time.Second, 200*time.Millisecond)

	c, err := consumer.New(consumer.Config{
		Brokers:  s.kafka.Brokers,
		GroupID:  "audit-sink-test",
		Topics:   []string{auditTopic},
		Earliest: true,
	}, audit.NewSink(s.store, s.logger), s.logger)
	s.Require().NoError(err)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- c.Run(runCtx) }()
	defer func() {
		cancel()
		c.Close()
		<-done
	}()

	s.Eventually(func() bool {
		events, err := s.store.ListByCredential(ctx, "c1")
		return err == nil && len(events) == 3
	}, 30*time.Second, 200*time.Millisecond)

	s.Eventually(func() bool {
		n, err := s.kafka.CommittedOffset(ctx, "audit-sink-test", auditTopic)
		return err == nil && n == 3
	}, 15*time.Second, 200*time.Millisecond)

	events, err := s.store.ListByCredential(ctx, "c1")
	s.Require().NoError(err)
	s.Equal(audit.ActionCredentialIssued, events[0].Action)
	s.Equal(audit.ActionCredentialDisabled, events[2].Action)
}
