package ports

import (
	"context"
	"time"

	"filingwatch/internal/domain"
)

// Entities registers and looks up monitored entities.
type Entities interface {
	Create(ctx context.Context, ownerUserID, displayName, entityType string) (domain.Entity, error)
	Get(ctx context.Context, entityID string) (domain.Entity, error)
}

// Assessments creates and reads versioned snapshots.
type Assessments interface {
	Create(ctx context.Context, entityID string, rawProfile []byte) (domain.AssessmentSnapshot, error)
	Latest(ctx context.Context, entityID string) (snap domain.AssessmentSnapshot, stale bool, err error)
}

// TickSummary aggregates one evaluate-all run.
type TickSummary struct {
	Evaluated     int `json:"evaluated"`
	Skipped       int `json:"skipped"`
	Failed        int `json:"failed"`
	EventsCreated int `json:"eventsCreated"`
}

// Evaluator runs the monitor over every entity.
type Evaluator interface {
	EvaluateAll(ctx context.Context, now time.Time) (TickSummary, error)
}

// DispatchSummary aggregates one dispatch run.
type DispatchSummary struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Dispatcher drains PENDING notification events.
type Dispatcher interface {
	Dispatch(ctx context.Context, now time.Time) (DispatchSummary, error)
}
