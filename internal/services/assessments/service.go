package assessments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"filingwatch/internal/domain"
	"filingwatch/internal/engine/deadlines"
	"filingwatch/internal/engine/rules"
	"filingwatch/internal/platform/metrics"
	"filingwatch/internal/ports"
)

type Service struct {
	entities    ports.EntityRepository
	assessments ports.AssessmentRepository
	now         func() time.Time
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithClock overrides the instant stamped on new snapshots.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func New(entities ports.EntityRepository, assessments ports.AssessmentRepository, opts ...Option) *Service {
	s := &Service{entities: entities, assessments: assessments, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the profile, runs both engines and stores the snapshot.
// Nothing is stored when validation fails.
func (s *Service) Create(ctx context.Context, entityID string, rawProfile []byte) (domain.AssessmentSnapshot, error) {
	entity, err := s.entities.GetEntity(ctx, entityID)
	if err != nil {
		return domain.AssessmentSnapshot{}, err
	}
	profile, err := DecodeProfile(rawProfile)
	if err != nil {
		return domain.AssessmentSnapshot{}, err
	}
	if profile.EntityType != entity.Type {
		return domain.AssessmentSnapshot{}, &domain.ValidationError{
			Field:  "entityType",
			Reason: fmt.Sprintf("does not match registered entity type %s", entity.Type),
		}
	}
	snap, err := BuildSnapshot(entityID, profile, s.now())
	if err != nil {
		return domain.AssessmentSnapshot{}, err
	}
	stored, err := s.assessments.InsertSnapshot(ctx, snap)
	if err != nil {
		return domain.AssessmentSnapshot{}, fmt.Errorf("store snapshot: %w", err)
	}
	s.metrics.IncAssessmentsCreated()
	s.logger.InfoContext(ctx, "assessment created",
		"entity_id", entityID,
		"assessment_id", stored.ID,
		"risk_score", stored.Risk.RiskScore,
		"risk_level", stored.Risk.RiskLevel,
		"deadlines", len(stored.Deadlines),
		"engine_version", stored.EngineVersion)
	return stored, nil
}

// Latest returns the newest snapshot and whether it predates the running rule set.
func (s *Service) Latest(ctx context.Context, entityID string) (domain.AssessmentSnapshot, bool, error) {
	snap, found, err := s.assessments.LatestSnapshot(ctx, entityID)
	if err != nil {
		return domain.AssessmentSnapshot{}, false, err
	}
	if !found {
		return domain.AssessmentSnapshot{}, false, domain.ErrNotFound
	}
	return snap, domain.IsStale(snap.EngineVersion, rules.Version), nil
}

// BuildSnapshot runs the rules and deadline engines for one profile. It is pure
// given now; the returned snapshot has no ID until stored.
func BuildSnapshot(entityID string, profile domain.EntityProfile, now time.Time) (domain.AssessmentSnapshot, error) {
	risk := rules.Assess(profile)
	due, err := deadlines.Compute(profile, risk.Obligations, now)
	if err != nil {
		return domain.AssessmentSnapshot{}, fmt.Errorf("compute deadlines: %w", err)
	}
	return domain.AssessmentSnapshot{
		EntityID:        entityID,
		Profile:         profile,
		Risk:            risk,
		Deadlines:       due.Deadlines,
		EngineVersion:   rules.Version,
		DeadlineVersion: due.Version,
		ComputedAt:      due.ComputedAt,
		TaxYear:         profile.TaxYear,
	}, nil
}
