// Package kafka publishes notifications for the mail service to deliver.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"filingwatch/internal/ports"
)

// Message is the record value consumed by the delivery service.
type Message struct {
	EventID     string          `json:"eventId"`
	EventType   string          `json:"eventType"`
	EntityID    string          `json:"entityId"`
	EntityName  string          `json:"entityName"`
	RecipientID string          `json:"recipientUserId"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type Sender struct {
	client *kgo.Client
	topic  string
}

func NewSender(brokers []string, topic string) (*Sender, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Sender{client: client, topic: topic}, nil
}

// Send produces one record keyed by the dedup key, so a retried send lands on
// the same partition and downstream consumers can drop repeats.
func (s *Sender) Send(ctx context.Context, d ports.PendingDelivery) error {
	payload, err := json.Marshal(d.Event.Payload)
	if err != nil {
		return err
	}
	value, err := json.Marshal(Message{
		EventID:     d.Event.ID,
		EventType:   string(d.Event.Type),
		EntityID:    d.Event.EntityID,
		EntityName:  d.EntityName,
		RecipientID: d.OwnerUserID,
		Payload:     payload,
		CreatedAt:   d.Event.CreatedAt,
	})
	if err != nil {
		return err
	}
	rec := &kgo.Record{Topic: s.topic, Key: []byte(d.Event.DedupKey), Value: value}
	return s.client.ProduceSync(ctx, rec).FirstErr()
}

func (s *Sender) Close() { s.client.Close() }
