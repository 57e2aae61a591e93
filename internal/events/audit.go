package events

import (
	"context"

	"mentor/internal/adapters/kafka"
	"mentor/pkg/logger"
)

// AuditPublisher mirrors session events to a Kafka topic for offline
// analysis. Fire-and-forget: audit failures never affect a running turn.
type AuditPublisher struct {
	producer *kafka.Producer
	topic    string
	log      *logger.Logger
}

// NewAuditPublisher creates a Kafka audit mirror.
func NewAuditPublisher(producer *kafka.Producer, topic string) *AuditPublisher {
	return &AuditPublisher{
		producer: producer,
		topic:    topic,
		log:      logger.Get().With("component", "audit_publisher"),
	}
}

// Record publishes one event keyed by session id.
func (a *AuditPublisher) Record(ctx context.Context, ev Event) {
	if err := a.producer.Publish(ctx, a.topic, ev.SessionID, ev); err != nil {
		a.log.Debugf("Audit publish failed: session=%s type=%s err=%v", ev.SessionID, ev.Type, err)
	}
}
