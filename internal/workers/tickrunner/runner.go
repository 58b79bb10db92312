package tickrunner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"filingwatch/internal/ports"
	"filingwatch/internal/services/monitoring"
)

// Job is one scheduled unit of work. now is read once per tick and passed in,
// never read inside the job.
type Job interface {
	Name() string
	RunOnce(ctx context.Context, now time.Time) error
}

// Run invokes job every interval until ctx is cancelled. Ticks never overlap:
// a slow run delays the next one instead of stacking. clock may be nil.
func Run(ctx context.Context, logger *slog.Logger, job Job, interval time.Duration, clock func() time.Time) {
	if interval <= 0 {
		return
	}
	if clock == nil {
		clock = time.Now
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := job.RunOnce(ctx, clock()); err != nil && !errors.Is(err, context.Canceled) {
				logger.ErrorContext(ctx, "scheduled job failed", "job", job.Name(), "error", err)
			}
		}
	}
}

// EvaluateJob runs the compliance tick over all entities.
type EvaluateJob struct {
	Evaluator ports.Evaluator
	Logger    *slog.Logger
}

func (j EvaluateJob) Name() string { return "evaluate" }

func (j EvaluateJob) RunOnce(ctx context.Context, now time.Time) error {
	summary, err := j.Evaluator.EvaluateAll(ctx, now)
	if errors.Is(err, monitoring.ErrTickInProgress) {
		j.Logger.InfoContext(ctx, "evaluation skipped; another scheduler holds the lock")
		return nil
	}
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		j.Logger.WarnContext(ctx, "evaluation finished with failures", "failed", summary.Failed)
	}
	return nil
}

// DispatchJob drains pending notification events.
type DispatchJob struct {
	Dispatcher ports.Dispatcher
	Logger     *slog.Logger
}

func (j DispatchJob) Name() string { return "dispatch" }

func (j DispatchJob) RunOnce(ctx context.Context, now time.Time) error {
	summary, err := j.Dispatcher.Dispatch(ctx, now)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		j.Logger.WarnContext(ctx, "dispatch finished with failures", "failed", summary.Failed)
	}
	return nil
}
