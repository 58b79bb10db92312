package ports

import (
	"context"
	"time"

	"filingwatch/internal/domain"
)

// EntityRepository stores the entities being monitored.
type EntityRepository interface {
	CreateEntity(ctx context.Context, e domain.Entity) (domain.Entity, error)
	GetEntity(ctx context.Context, entityID string) (domain.Entity, error)
	// ListEntityIDs pages through entity ids in ascending order, starting after
	// the given id ("" for the first page).
	ListEntityIDs(ctx context.Context, after string, limit int) ([]string, error)
}

// AssessmentRepository is append-only: snapshots are superseded, never edited.
type AssessmentRepository interface {
	InsertSnapshot(ctx context.Context, s domain.AssessmentSnapshot) (domain.AssessmentSnapshot, error)
	LatestSnapshot(ctx context.Context, entityID string) (snap domain.AssessmentSnapshot, found bool, err error)
}

// StateRepository holds exactly one compliance state per entity.
type StateRepository interface {
	GetState(ctx context.Context, entityID string) (state domain.ComplianceState, found bool, err error)
	// ApplyEvaluation upserts the state and then inserts the events in one
	// transaction. Events whose dedup key already exists are skipped; only the
	// rows actually inserted are returned, with their ids.
	ApplyEvaluation(ctx context.Context, state domain.ComplianceState, events []domain.NotificationEvent) (inserted []domain.NotificationEvent, err error)
}

// EventRepository reads the notification log.
type EventRepository interface {
	ListEvents(ctx context.Context, entityID string, limit int) ([]domain.NotificationEvent, error)
}

// FeatureGate answers whether a user may receive a feature. Opaque to the
// engine.
type FeatureGate interface {
	HasFeature(ctx context.Context, userID string, feature string) (bool, error)
}

// Locker provides best-effort mutual exclusion between schedulers.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}
