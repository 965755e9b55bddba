package backend

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransient(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{name: "nil", err: nil, transient: false},
		{name: "unavailable", err: ErrUnavailable, transient: true},
		{name: "wrapped unavailable", err: fmt.Errorf("pin rm: %w: status 503", ErrUnavailable), transient: true},
		{name: "not found", err: ErrNotFound, transient: false},
		{name: "malformed locator", err: ErrMalformedLocator, transient: false},
		{name: "context canceled", err: context.Canceled, transient: false},
		{name: "deadline exceeded", err: context.DeadlineExceeded, transient: false},
		{name: "net error", err: &timeoutError{}, transient: true},
		{name: "plain error", err: errors.New("boom"), transient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, Transient(tt.err))
		})
	}
}

// timeoutError implements net.Error.
type timeoutError struct{}

func (*timeoutError) Error() string   { return "i/o timeout" }
func (*timeoutError) Timeout() bool   { return true }
func (*timeoutError) Temporary() bool { return true }

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), DefaultRetryPolicy(), "op", func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	err := Retry(context.Background(), policy, "op", func() error {
		calls++
		if calls < 3 {
			return ErrUnavailable
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond}

	calls := 0
	err := Retry(context.Background(), policy, "op", func() error {
		calls++
		return ErrMalformedLocator
	})

	require.ErrorIs(t, err, ErrMalformedLocator)
	assert.Contains(t, err.Error(), "failed permanently")
	assert.Equal(t, 1, calls)
}

func TestRetryExhaustsAttemptBudget(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

	calls := 0
	err := Retry(context.Background(), policy, "op", func() error {
		calls++
		return ErrUnavailable
	})

	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestRetryRespectsContextDuringBackoff(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Retry(ctx, policy, "op", func() error {
			calls++
			return ErrUnavailable
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("retry did not honor cancellation during backoff")
	}
	assert.Equal(t, 1, calls)
}

func TestRetryCheckedCancelledContextBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, DefaultRetryPolicy(), "op", func() error {
		calls++
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}
