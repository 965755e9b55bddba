package backend

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy bounds the exponential backoff applied to transient failures.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the second attempt; it doubles per
	// attempt after that.
	BaseDelay time.Duration
}

// DefaultRetryPolicy retries transient failures a handful of times with
// exponential backoff starting at 100ms (100, 200, 400, 800ms).
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond}
}

// Retry runs fn until it succeeds, fails permanently, exhausts the attempt
// budget, or the context is cancelled.
//
// Only errors for which Transient reports true are retried; everything else
// surfaces immediately. Backoff sleeps respect context cancellation.
func Retry(ctx context.Context, policy RetryPolicy, opName string, fn func() error) error {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	base := policy.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !Transient(err) {
			return fmt.Errorf("%s failed permanently: %w", opName, err)
		}

		if attempt == attempts {
			break
		}

		sleep := base * (1 << (attempt - 1))
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", opName, attempts, lastErr)
}
