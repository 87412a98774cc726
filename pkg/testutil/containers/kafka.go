//go:build integration

package containers

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

type KafkaContainer struct {
	Container testcontainers.Container
	Brokers   string
}

// NewKafkaContainer starts a Redpanda broker speaking the Kafka protocol.
func NewKafkaContainer(t *testing.T) *KafkaContainer {
	t.Helper()

	ctx := context.Background()

	container, err := kafka.Run(ctx,
		"redpandadata/redpanda:latest",
		kafka.WithClusterID("test-cluster"),
	)
	if err != nil {
		t.Fatalf("failed to start kafka container: %v", err)
	}

	brokers, err := container.Brokers(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get kafka brokers: %v", err)
	}

	kc := &KafkaContainer{
		Container: container,
		Brokers:   brokers[0],
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Terminate(ctx)
	})

	return kc
}

// CreateTopic creates topic through the admin API.
func (k *KafkaContainer) CreateTopic(ctx context.Context, topic string, partitions int32, replicationFactor int16) error {
	return k.withAdmin(func(adm *kadm.Client) error {
		resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, topic)
		if err != nil {
			return err
		}
		return resp.Error()
	})
}

// EndOffset sums the high watermark of every partition of topic, which is the
// number of records produced to a fresh topic.
func (k *KafkaContainer) EndOffset(ctx context.Context, topic string) (int64, error) {
	var total int64
	err := k.withAdmin(func(adm *kadm.Client) error {
		listed, err := adm.ListEndOffsets(ctx, topic)
		if err != nil {
			return err
		}
		if err := listed.Error(); err != nil {
			return err
		}
		listed.Each(func(o kadm.ListedOffset) {
			total += o.Offset
		})
		return nil
	})
	return total, err
}

// CommittedOffset sums the offsets group has committed on topic. Partitions
// without a commit count as zero.
func (k *KafkaContainer) CommittedOffset(ctx context.Context, group, topic string) (int64, error) {
	var total int64
	err := k.withAdmin(func(adm *kadm.Client) error {
		resps, err := adm.FetchOffsets(ctx, group)
		if err != nil {
			return err
		}
		resps.Each(func(o kadm.OffsetResponse) {
			if o.Err == nil && o.Topic == topic && o.At > 0 {
				total += o.At
			}
		})
		return nil
	})
	return total, err
}

func (k *KafkaContainer) withAdmin(fn func(*kadm.Client) error) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(k.Brokers))
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(kadm.NewClient(client))
}
