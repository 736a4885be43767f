package repository

import (
	"context"

	"TickerPulse/internal/domain/models"
	domrepo "TickerPulse/internal/domain/repository"
	"TickerPulse/pkg/kafka"
)

// KafkaSyncEvents publishes sync outcomes to a Kafka topic, keyed by ticker
// so per-ticker ordering is preserved.
type KafkaSyncEvents struct {
	producer *kafka.Producer
	topic    string
}

// NewKafkaSyncEvents creates a Kafka-backed sync event publisher.
func NewKafkaSyncEvents(producer *kafka.Producer, topic string) *KafkaSyncEvents {
	return &KafkaSyncEvents{producer: producer, topic: topic}
}

func (k *KafkaSyncEvents) PublishOutcome(ctx context.Context, ev *models.SyncEvent) error {
	return k.producer.Publish(ctx, k.topic, []byte(ev.Ticker), ev)
}

func (k *KafkaSyncEvents) Close() error {
	return k.producer.Close()
}

// NoopSyncEvents is used when event publishing is disabled.
type NoopSyncEvents struct{}

func (NoopSyncEvents) PublishOutcome(context.Context, *models.SyncEvent) error { return nil }
func (NoopSyncEvents) Close() error                                            { return nil }

var (
	_ domrepo.SyncEvents = (*KafkaSyncEvents)(nil)
	_ domrepo.SyncEvents = NoopSyncEvents{}
)
