package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filingwatch/internal/domain"
)

var fast = Policy{MaxRetries: 3, InitialInterval: time.Millisecond, MaxElapsed: time.Second}

func TestDo_RetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_GivesUp(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, func() error {
		calls++
		return errors.New("down")
	})
	require.EqualError(t, err, "down")
	assert.Equal(t, 4, calls)
}

func TestDo_PermanentErrorsStopImmediately(t *testing.T) {
	for _, perm := range []error{
		&domain.ValidationError{Field: "x", Reason: "bad"},
		fmt.Errorf("wrapped: %w", domain.ErrInvariant),
		domain.ErrNotFound,
		context.Canceled,
	} {
		calls := 0
		err := Do(context.Background(), fast, func() error {
			calls++
			return perm
		})
		assert.ErrorIs(t, err, perm)
		assert.Equal(t, 1, calls, "%v", perm)
	}
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.True(t, Retryable(errors.New("timeout")))
	assert.False(t, Retryable(domain.ErrConflict))
	assert.False(t, Retryable(context.DeadlineExceeded))
}
