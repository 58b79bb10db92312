// Package logsender is the delivery channel for local runs: it logs what would
// have been sent.
package logsender

import (
	"context"
	"log/slog"

	"filingwatch/internal/ports"
)

type Sender struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Sender { return &Sender{logger: logger} }

func (s *Sender) Send(ctx context.Context, d ports.PendingDelivery) error {
	s.logger.InfoContext(ctx, "notification",
		"event_id", d.Event.ID,
		"type", d.Event.Type,
		"entity", d.EntityName,
		"recipient", d.OwnerUserID,
		"form", d.Event.Payload.Form,
		"due_date", d.Event.Payload.DueDate,
		"days_remaining", d.Event.Payload.DaysRemaining)
	return nil
}
