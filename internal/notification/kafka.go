package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"campusid/internal/platform/config"
	"campusid/pkg/requestcontext"
)

// IdentityCreatedEvent is the payload published on the identity topic.
type IdentityCreatedEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	IdentityID string    `json:"identity_id"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

const eventTypeIdentityCreated = "identity.created"

// Kafka publishes identity events, keyed by identity id so one identity's
// events stay ordered within a partition.
type Kafka struct {
	client *kgo.Client
	topic  string
}

// NewKafka connects to the brokers and makes sure the topic exists.
func NewKafka(ctx context.Context, cfg config.KafkaConfig) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	if err := ensureTopic(ctx, kadm.NewClient(client), cfg); err != nil {
		client.Close()
		return nil, err
	}
	return &Kafka{client: client, topic: cfg.Topic}, nil
}

func ensureTopic(ctx context.Context, adm *kadm.Client, cfg config.KafkaConfig) error {
	resp, err := adm.CreateTopic(ctx, cfg.Partitions, cfg.ReplicationFactor, nil, cfg.Topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", cfg.Topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", cfg.Topic, resp.Err)
	}
	return nil
}

func (k *Kafka) NotifyIdentityCreated(ctx context.Context, email, identityID string) error {
	payload, err := json.Marshal(IdentityCreatedEvent{
		EventID:    uuid.NewString(),
		Type:       eventTypeIdentityCreated,
		IdentityID: identityID,
		Email:      email,
		OccurredAt: requestcontext.Now(ctx).UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode identity event: %w", err)
	}
	rec := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(identityID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(eventTypeIdentityCreated)},
		},
	}
	if err := k.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("publish identity event: %w", err)
	}
	return nil
}

// Ping checks broker connectivity for health reporting.
func (k *Kafka) Ping(ctx context.Context) error {
	return k.client.Ping(ctx)
}

// Close flushes buffered records and closes the client.
func (k *Kafka) Close() {
	k.client.Close()
}
