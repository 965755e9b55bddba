package pacer

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum interval between successive batches of backend
// mutations using the token bucket algorithm.
//
// Both storage backends serve live traffic; a purge run must not compete with
// it. The pacer converts a configured inter-batch delay into a sustained rate
// (one token per interval, burst of one), so the first batch proceeds
// immediately and every following batch waits out the remainder of the
// interval. This is a deliberate rate limit on destructive work, not a
// throughput optimization.
//
// Thread safety:
// All methods are safe for concurrent use, though the retention executor
// drives batches sequentially by design.
type Pacer struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// New creates a Pacer with the given inter-batch interval.
//
// An interval of 0 disables pacing: Wait returns immediately.
func New(interval time.Duration) *Pacer {
	if interval <= 0 {
		return &Pacer{
			limiter:  rate.NewLimiter(rate.Inf, 1),
			interval: 0,
		}
	}

	return &Pacer{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// Wait blocks until the next batch may proceed or the context is cancelled.
//
// Returns the context error if cancelled while waiting; the caller treats
// that as a cooperative cancellation of the run, not a failure.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Interval returns the configured inter-batch interval.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}
