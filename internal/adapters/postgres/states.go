package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"filingwatch/internal/domain"
)

// StateRepository
func (db *DB) GetState(ctx context.Context, entityID string) (domain.ComplianceState, bool, error) {
	var (
		st              domain.ComplianceState
		form            string
		status, urgency string
	)
	if _, err := uuid.Parse(entityID); err != nil {
		return domain.ComplianceState{}, false, nil
	}
	err := db.Pool.QueryRow(ctx, `
        SELECT entity_id::text, next_form, next_due_date, days_remaining, status, urgency, engine_version, last_evaluated_at
        FROM compliance_states WHERE entity_id = $1
    `, entityID).Scan(&st.EntityID, &form, &st.DueDate, &st.DaysRemaining, &status, &urgency, &st.EngineVersion, &st.EvaluatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ComplianceState{}, false, nil
	}
	if err != nil {
		return domain.ComplianceState{}, false, err
	}
	st.Form, err = domain.ParseFormID(form)
	if err != nil {
		return domain.ComplianceState{}, false, fmt.Errorf("compliance state %s: %w", entityID, err)
	}
	st.Status = domain.Status(status)
	st.Urgency = domain.Urgency(urgency)
	if err := st.Standing.Validate(); err != nil {
		return domain.ComplianceState{}, false, fmt.Errorf("compliance state %s: %w", entityID, err)
	}
	return st, true, nil
}

// ApplyEvaluation upserts the state then inserts events, atomically. A failure
// leaves the previous state in place.
func (db *DB) ApplyEvaluation(ctx context.Context, st domain.ComplianceState, events []domain.NotificationEvent) (inserted []domain.NotificationEvent, err error) {
	if err := st.Standing.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `
        INSERT INTO compliance_states (entity_id, next_form, next_due_date, days_remaining, status, urgency, engine_version, last_evaluated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (entity_id) DO UPDATE SET
            next_form = EXCLUDED.next_form,
            next_due_date = EXCLUDED.next_due_date,
            days_remaining = EXCLUDED.days_remaining,
            status = EXCLUDED.status,
            urgency = EXCLUDED.urgency,
            engine_version = EXCLUDED.engine_version,
            last_evaluated_at = EXCLUDED.last_evaluated_at
    `, st.EntityID, string(st.Form), st.DueDate, st.DaysRemaining, string(st.Status), string(st.Urgency), st.EngineVersion, st.EvaluatedAt); err != nil {
		return nil, err
	}

	for _, ev := range events {
		payload, merr := json.Marshal(ev.Payload)
		if merr != nil {
			err = fmt.Errorf("encode payload: %w", merr)
			return nil, err
		}
		qerr := tx.QueryRow(ctx, `
            INSERT INTO notification_events (entity_id, event_type, dedup_key, payload, status, created_at)
            VALUES ($1, $2, $3, $4, 'PENDING', $5)
            ON CONFLICT (dedup_key) DO NOTHING
            RETURNING id::text
        `, ev.EntityID, string(ev.Type), ev.DedupKey, payload, ev.CreatedAt).Scan(&ev.ID)
		if errors.Is(qerr, pgx.ErrNoRows) {
			continue
		}
		if qerr != nil {
			err = qerr
			return nil, err
		}
		ev.Status = domain.EventPending
		inserted = append(inserted, ev)
	}
	return inserted, nil
}
