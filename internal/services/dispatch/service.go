// Package dispatch drains PENDING notification events to the delivery channel.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"filingwatch/internal/platform/metrics"
	"filingwatch/internal/platform/retry"
	"filingwatch/internal/ports"
)

// FeatureReminders gates who may receive compliance reminders.
const FeatureReminders = "compliance_reminders"

const (
	reasonNoFeature   = "recipient lacks feature " + FeatureReminders
	reasonMaxAttempts = "delivery attempts exhausted"
	reasonRepeat      = "already attempted in this run"

	maxRetryAfter = time.Hour
)

type Service struct {
	repo   ports.DeliveryRepository
	gate   ports.FeatureGate
	sender ports.Sender

	batch       int
	maxBatches  int
	lease       time.Duration
	maxAttempts int
	retryAfter  time.Duration
	limiter     *rate.Limiter
	retry       retry.Policy
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batch = n
		}
	}
}

// WithMaxAttempts cancels an event after n failed sends.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithRate throttles sends to perSecond with the given burst. Zero disables
// throttling.
func WithRate(perSecond float64, burst int) Option {
	return func(s *Service) {
		if perSecond <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithRetryAfter sets how long a failed event stays hidden after its first
// failure. The delay doubles with each further attempt, up to an hour.
// Non-positive values keep the default.
func WithRetryAfter(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retryAfter = d
		}
	}
}

func WithLease(d time.Duration) Option { return func(s *Service) { s.lease = d } }

func WithRetryPolicy(p retry.Policy) Option { return func(s *Service) { s.retry = p } }

func New(repo ports.DeliveryRepository, gate ports.FeatureGate, sender ports.Sender, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		gate:        gate,
		sender:      sender,
		batch:       100,
		maxBatches:  50,
		lease:       2 * time.Minute,
		maxAttempts: 5,
		retryAfter:  time.Minute,
		limiter:     rate.NewLimiter(rate.Inf, 0),
		retry:       retry.DefaultPolicy(),
		logger:      slog.Default(),
		tracer:      otel.Tracer("filingwatch/dispatch"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch claims PENDING events in batches and delivers them. A failure for
// one recipient is counted and the run moves on; only claim failures and
// cancellation end it early. Each event is attempted at most once per run.
func (s *Service) Dispatch(ctx context.Context, now time.Time) (ports.DispatchSummary, error) {
	var summary ports.DispatchSummary
	attempted := make(map[string]struct{})
	for i := 0; i < s.maxBatches; i++ {
		var claimed []ports.PendingDelivery
		err := retry.Do(ctx, s.retry, func() error {
			var err error
			claimed, err = s.repo.ClaimPending(ctx, s.batch, s.lease)
			return err
		})
		if err != nil {
			return summary, fmt.Errorf("claim pending events: %w", err)
		}
		repeated := false
		for _, d := range claimed {
			if _, seen := attempted[d.Event.ID]; seen {
				// The retry delay ran out while this run was still going.
				repeated = true
				if err := s.repo.ReleaseClaim(ctx, d.Event.ID, reasonRepeat, s.retryDelay(d.Attempts)); err != nil {
					s.logger.WarnContext(ctx, "release repeated claim", "event_id", d.Event.ID, "error", err)
				}
				continue
			}
			attempted[d.Event.ID] = struct{}{}
			if err := s.limiter.Wait(ctx); err != nil {
				return summary, err
			}
			switch s.deliver(ctx, d, now) {
			case outcomeSent:
				summary.Sent++
			case outcomeSkipped:
				summary.Skipped++
			case outcomeFailed:
				summary.Failed++
			}
		}
		if repeated || len(claimed) < s.batch {
			break
		}
	}
	s.logger.InfoContext(ctx, "dispatch finished",
		"sent", summary.Sent, "skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}

type outcome string

const (
	outcomeSent    outcome = "sent"
	outcomeSkipped outcome = "skipped"
	outcomeFailed  outcome = "failed"
)

func (s *Service) deliver(ctx context.Context, d ports.PendingDelivery, now time.Time) outcome {
	ctx, span := s.tracer.Start(ctx, "deliver_event", trace.WithAttributes(
		attribute.String("event.id", d.Event.ID),
		attribute.String("event.type", string(d.Event.Type)),
		attribute.String("entity.id", d.Event.EntityID),
	))
	defer span.End()

	o, err := s.attempt(ctx, d, now)
	s.metrics.IncDelivery(string(o))
	span.SetAttributes(attribute.String("outcome", string(o)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.WarnContext(ctx, "delivery failed",
			"event_id", d.Event.ID, "entity_id", d.Event.EntityID, "attempts", d.Attempts, "error", err)
	}
	return o
}

func (s *Service) attempt(ctx context.Context, d ports.PendingDelivery, now time.Time) (outcome, error) {
	allowed, err := s.gate.HasFeature(ctx, d.OwnerUserID, FeatureReminders)
	if err != nil {
		return outcomeFailed, s.release(ctx, d, fmt.Errorf("feature check: %w", err))
	}
	if !allowed {
		if _, err := s.repo.MarkCancelled(ctx, d.Event.ID, reasonNoFeature); err != nil {
			return outcomeFailed, fmt.Errorf("cancel event: %w", err)
		}
		return outcomeSkipped, nil
	}

	if err := s.sender.Send(ctx, d); err != nil {
		if d.Attempts >= s.maxAttempts {
			if _, cerr := s.repo.MarkCancelled(ctx, d.Event.ID, reasonMaxAttempts); cerr != nil {
				return outcomeFailed, fmt.Errorf("send: %w; cancel: %v", err, cerr)
			}
			return outcomeFailed, fmt.Errorf("send (giving up after %d attempts): %w", d.Attempts, err)
		}
		return outcomeFailed, s.release(ctx, d, fmt.Errorf("send: %w", err))
	}

	var updated bool
	err = retry.Do(ctx, s.retry, func() error {
		var err error
		updated, err = s.repo.MarkSent(ctx, d.Event.ID, now)
		return err
	})
	if err != nil {
		return outcomeFailed, fmt.Errorf("mark sent: %w", err)
	}
	if !updated {
		s.logger.WarnContext(ctx, "event finalised by another worker after send", "event_id", d.Event.ID)
	}
	return outcomeSent, nil
}

// release returns the event to the queue after a backoff and reports cause.
func (s *Service) release(ctx context.Context, d ports.PendingDelivery, cause error) error {
	if err := s.repo.ReleaseClaim(ctx, d.Event.ID, cause.Error(), s.retryDelay(d.Attempts)); err != nil {
		return fmt.Errorf("%w; release claim: %v", cause, err)
	}
	return cause
}

// retryDelay is retryAfter doubled for every attempt past the first.
func (s *Service) retryDelay(attempts int) time.Duration {
	d := s.retryAfter
	for i := 1; i < attempts && d < maxRetryAfter; i++ {
		d *= 2
	}
	return min(d, maxRetryAfter)
}
