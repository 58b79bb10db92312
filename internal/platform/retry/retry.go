// Package retry wraps storage and delivery calls in exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"filingwatch/internal/domain"
)

type Policy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxElapsed      time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, InitialInterval: 100 * time.Millisecond, MaxElapsed: 5 * time.Second}
}

// Do runs op until it succeeds, returns a non-retryable error, or the policy is
// exhausted. The last error is returned unwrapped.
func Do(ctx context.Context, p Policy, op func() error) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxElapsedTime = p.MaxElapsed
	b := backoff.WithContext(backoff.WithMaxRetries(exp, p.MaxRetries), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
}

// Retryable is false for errors that a second attempt cannot fix.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case domain.IsValidation(err),
		errors.Is(err, domain.ErrInvariant),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
