//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kgo"

	"filingwatch/internal/domain"
	"filingwatch/internal/ports"
)

func TestSenderPublishesKeyedRecord(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := redpanda.Run(ctx, "docker.redpanda.com/redpandadata/redpanda:v24.2.4", redpanda.WithAutoCreateTopics())
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	broker, err := container.KafkaSeedBroker(ctx)
	require.NoError(t, err)

	const topic = "filingwatch.notifications.test"
	sender, err := NewSender([]string{broker}, topic)
	require.NoError(t, err)
	defer sender.Close()

	d := ports.PendingDelivery{
		Event: domain.NotificationEvent{
			ID:       "ev-1",
			EntityID: "ent-1",
			Type:     domain.EventDueSoon30,
			DedupKey: "ne_abc",
			Payload:  domain.EventPayload{Form: domain.Form5472, DueDate: "2026-04-15", DaysRemaining: 16},
		},
		OwnerUserID: "u1",
		EntityName:  "Acme LLC",
	}
	require.NoError(t, sender.Send(ctx, d))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)
	require.Equal(t, "ne_abc", string(records[0].Key))

	var msg Message
	require.NoError(t, json.Unmarshal(records[0].Value, &msg))
	require.Equal(t, "ev-1", msg.EventID)
	require.Equal(t, "u1", msg.RecipientID)
	require.Equal(t, "Acme LLC", msg.EntityName)
	require.JSONEq(t, `{"form":"FORM_5472","dueDate":"2026-04-15","daysRemaining":16,"status":"","urgency":"","engineVersion":""}`, string(msg.Payload))
}
