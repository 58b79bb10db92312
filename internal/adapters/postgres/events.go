package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"filingwatch/internal/domain"
	"filingwatch/internal/ports"
)

const eventColumns = `ne.id::text, ne.entity_id::text, ne.event_type, ne.dedup_key, ne.payload, ne.status, ne.created_at, ne.sent_at`

func scanEvent(row pgx.Row, extra ...any) (domain.NotificationEvent, error) {
	var (
		ev      domain.NotificationEvent
		typ     string
		status  string
		payload []byte
	)
	dest := append([]any{&ev.ID, &ev.EntityID, &typ, &ev.DedupKey, &payload, &status, &ev.CreatedAt, &ev.SentAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return ev, err
	}
	ev.Type = domain.EventType(typ)
	ev.Status = domain.EventStatus(status)
	if err := json.Unmarshal(payload, &ev.Payload); err != nil {
		return ev, fmt.Errorf("%w: decode payload of event %s: %v", domain.ErrInvariant, ev.ID, err)
	}
	return ev, nil
}

// EventRepository
func (db *DB) ListEvents(ctx context.Context, entityID string, limit int) ([]domain.NotificationEvent, error) {
	if _, err := uuid.Parse(entityID); err != nil {
		return nil, nil
	}
	rows, err := db.Pool.Query(ctx, `
        SELECT `+eventColumns+`
        FROM notification_events ne
        WHERE ne.entity_id = $1
        ORDER BY ne.created_at DESC
        LIMIT $2
    `, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.NotificationEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ClaimPending leases the oldest PENDING events using SKIP LOCKED so that
// concurrent dispatchers never hold the same row. The status stays PENDING;
// the lease only hides the row until it expires or is released.
func (db *DB) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]ports.PendingDelivery, error) {
	rows, err := db.Pool.Query(ctx, `
        WITH next AS (
            SELECT id FROM notification_events
            WHERE status = 'PENDING'
              AND (claimed_until IS NULL OR claimed_until < now())
            ORDER BY created_at
            FOR UPDATE SKIP LOCKED
            LIMIT $1
        )
        UPDATE notification_events ne
        SET claimed_until = now() + make_interval(secs => $2), attempts = ne.attempts + 1
        FROM next, entities e
        WHERE ne.id = next.id AND e.id = ne.entity_id
        RETURNING `+eventColumns+`, ne.attempts, e.owner_user_id, e.display_name
    `, limit, lease.Seconds())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ports.PendingDelivery
	for rows.Next() {
		var d ports.PendingDelivery
		ev, err := scanEvent(rows, &d.Attempts, &d.OwnerUserID, &d.EntityName)
		if err != nil {
			return nil, err
		}
		d.Event = ev
		out = append(out, d)
	}
	return out, rows.Err()
}

func (db *DB) MarkSent(ctx context.Context, eventID string, at time.Time) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
        UPDATE notification_events
        SET status = 'SENT', sent_at = $2, claimed_until = NULL, last_error = NULL
        WHERE id = $1 AND status = 'PENDING'
    `, eventID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (db *DB) MarkCancelled(ctx context.Context, eventID string, reason string) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
        UPDATE notification_events
        SET status = 'CANCELLED', claimed_until = NULL, last_error = $2
        WHERE id = $1 AND status = 'PENDING'
    `, eventID, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (db *DB) ReleaseClaim(ctx context.Context, eventID string, reason string, retryAfter time.Duration) error {
	_, err := db.Pool.Exec(ctx, `
        UPDATE notification_events
        SET claimed_until = now() + make_interval(secs => $3), last_error = $2
        WHERE id = $1 AND status = 'PENDING'
    `, eventID, reason, retryAfter.Seconds())
	return err
}

// FeatureGate
func (db *DB) HasFeature(ctx context.Context, userID string, feature string) (bool, error) {
	var ok bool
	err := db.Pool.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM entitlements WHERE user_id = $1 AND feature = $2)
    `, userID, feature).Scan(&ok)
	return ok, err
}

// GrantFeature is used by operators and tests to seed entitlements.
func (db *DB) GrantFeature(ctx context.Context, userID string, feature string) error {
	_, err := db.Pool.Exec(ctx, `
        INSERT INTO entitlements (user_id, feature) VALUES ($1, $2)
        ON CONFLICT DO NOTHING
    `, userID, feature)
	return err
}
