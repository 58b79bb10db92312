package ports

import (
	"context"
	"time"

	"filingwatch/internal/domain"
)

// PendingDelivery is a claimed PENDING event together with its recipient.
type PendingDelivery struct {
	Event       domain.NotificationEvent
	OwnerUserID string
	EntityName  string
	Attempts    int
}

// DeliveryRepository supports claiming and finalising notification events.
// Status only moves PENDING -> SENT or PENDING -> CANCELLED; every transition is
// conditional on the row still being PENDING.
type DeliveryRepository interface {
	ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]PendingDelivery, error)
	// MarkSent and MarkCancelled report false when the row was no longer PENDING.
	MarkSent(ctx context.Context, eventID string, at time.Time) (bool, error)
	MarkCancelled(ctx context.Context, eventID string, reason string) (bool, error)
	// ReleaseClaim keeps the event PENDING but hides it from ClaimPending for
	// retryAfter.
	ReleaseClaim(ctx context.Context, eventID string, reason string, retryAfter time.Duration) error
}

// Sender hands a notification to the outbound channel.
type Sender interface {
	Send(ctx context.Context, d PendingDelivery) error
}
