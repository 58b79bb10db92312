// Package monitoring runs the compliance monitor and event generator over the
// entity population. Each entity is evaluated independently; a failure for one
// leaves its stored state untouched and does not stop the others.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"filingwatch/internal/domain"
	"filingwatch/internal/engine/monitor"
	"filingwatch/internal/engine/notify"
	"filingwatch/internal/engine/rules"
	"filingwatch/internal/platform/metrics"
	"filingwatch/internal/platform/retry"
	"filingwatch/internal/ports"
)

// ErrTickInProgress is returned when another scheduler holds the tick lock.
var ErrTickInProgress = errors.New("evaluation tick already running")

const lockKey = "filingwatch:tick:evaluate"

// Outcome classifies one entity's evaluation.
type Outcome string

const (
	OutcomeEvaluated Outcome = "evaluated"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

type Service struct {
	entities    ports.EntityRepository
	assessments ports.AssessmentRepository
	states      ports.StateRepository

	version     string
	concurrency int
	pageSize    int
	lockTTL     time.Duration
	locker      ports.Locker
	retry       retry.Policy
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithVersion sets the engine version stamped on computed states.
func WithVersion(v string) Option { return func(s *Service) { s.version = v } }

// WithConcurrency bounds how many entities are evaluated at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithLocker makes overlapping runs skip instead of racing. Correctness does
// not depend on it.
func WithLocker(l ports.Locker, ttl time.Duration) Option {
	return func(s *Service) {
		s.locker = l
		s.lockTTL = ttl
	}
}

func WithRetryPolicy(p retry.Policy) Option { return func(s *Service) { s.retry = p } }

func New(entities ports.EntityRepository, assessments ports.AssessmentRepository, states ports.StateRepository, opts ...Option) *Service {
	s := &Service{
		entities:    entities,
		assessments: assessments,
		states:      states,
		version:     monitor.Version,
		concurrency: 8,
		pageSize:    500,
		lockTTL:     10 * time.Minute,
		retry:       retry.DefaultPolicy(),
		logger:      slog.Default(),
		tracer:      otel.Tracer("filingwatch/monitoring"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EvaluateAll recomputes every entity's state against now. Per-entity failures
// are counted, not returned; the error is reserved for failures that stop the
// whole run (listing entities, lock contention, cancellation).
func (s *Service) EvaluateAll(ctx context.Context, now time.Time) (ports.TickSummary, error) {
	var summary ports.TickSummary
	if s.locker != nil {
		release, acquired, err := s.locker.TryLock(ctx, lockKey, s.lockTTL)
		if err != nil {
			return summary, fmt.Errorf("acquire tick lock: %w", err)
		}
		if !acquired {
			return summary, ErrTickInProgress
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.WarnContext(ctx, "release tick lock", "error", err)
			}
		}()
	}

	started := time.Now()
	defer func() { s.metrics.ObserveTick(time.Since(started).Seconds()) }()

	var mu sync.Mutex
	record := func(o Outcome, inserted int) {
		mu.Lock()
		defer mu.Unlock()
		switch o {
		case OutcomeEvaluated:
			summary.Evaluated++
		case OutcomeSkipped:
			summary.Skipped++
		case OutcomeFailed:
			summary.Failed++
		}
		summary.EventsCreated += inserted
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	after := ""
	for {
		var ids []string
		err := retry.Do(gctx, s.retry, func() error {
			var err error
			ids, err = s.entities.ListEntityIDs(gctx, after, s.pageSize)
			return err
		})
		if err != nil {
			_ = g.Wait()
			return summary, fmt.Errorf("list entities after %q: %w", after, err)
		}
		for _, id := range ids {
			id := id
			g.Go(func() error {
				o, inserted := s.EvaluateEntity(gctx, id, now)
				record(o, inserted)
				return nil
			})
		}
		if len(ids) < s.pageSize {
			break
		}
		after = ids[len(ids)-1]
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	s.logger.InfoContext(ctx, "evaluation tick finished",
		"evaluated", summary.Evaluated,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"events_created", summary.EventsCreated,
		"duration", time.Since(started))
	return summary, nil
}

// EvaluateEntity runs monitor -> generator -> persistence for one entity.
func (s *Service) EvaluateEntity(ctx context.Context, entityID string, now time.Time) (Outcome, int) {
	ctx, span := s.tracer.Start(ctx, "evaluate_entity", trace.WithAttributes(attribute.String("entity.id", entityID)))
	defer span.End()

	o, inserted, err := s.evaluate(ctx, entityID, now)
	s.metrics.IncEntityOutcome(string(o))
	span.SetAttributes(attribute.String("outcome", string(o)), attribute.Int("events.inserted", inserted))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		level := slog.LevelWarn
		if errors.Is(err, domain.ErrInvariant) {
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, "entity evaluation failed", "entity_id", entityID, "error", err)
	}
	return o, inserted
}

func (s *Service) evaluate(ctx context.Context, entityID string, now time.Time) (Outcome, int, error) {
	var (
		snap  domain.AssessmentSnapshot
		found bool
	)
	err := retry.Do(ctx, s.retry, func() error {
		var err error
		snap, found, err = s.assessments.LatestSnapshot(ctx, entityID)
		return err
	})
	if err != nil {
		return OutcomeFailed, 0, fmt.Errorf("load snapshot: %w", err)
	}
	if !found {
		return OutcomeSkipped, 0, nil
	}
	if domain.IsStale(snap.EngineVersion, rules.Version) {
		s.logger.DebugContext(ctx, "snapshot predates current rule set",
			"entity_id", entityID, "snapshot_version", snap.EngineVersion, "rules_version", rules.Version)
	}

	next, ok := monitor.ComputeState(entityID, snap.Deadlines, s.version, now)
	if !ok {
		return OutcomeSkipped, 0, nil
	}

	var (
		prev      domain.ComplianceState
		havePrev  bool
		prevState *domain.ComplianceState
	)
	err = retry.Do(ctx, s.retry, func() error {
		var err error
		prev, havePrev, err = s.states.GetState(ctx, entityID)
		return err
	})
	if err != nil {
		return OutcomeFailed, 0, fmt.Errorf("load previous state: %w", err)
	}
	if havePrev {
		prevState = &prev
	}

	events := notify.Generate(entityID, prevState, next)
	var inserted []domain.NotificationEvent
	err = retry.Do(ctx, s.retry, func() error {
		var err error
		inserted, err = s.states.ApplyEvaluation(ctx, next, events)
		return err
	})
	if err != nil {
		return OutcomeFailed, 0, fmt.Errorf("apply evaluation: %w", err)
	}
	for _, ev := range inserted {
		s.metrics.IncEventCreated(string(ev.Type))
	}
	return OutcomeEvaluated, len(inserted), nil
}
