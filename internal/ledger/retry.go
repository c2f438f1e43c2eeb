package ledger

import (
	"context"
	"time"
)

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = 2 * time.Second
)

// retrier executes operations under a bounded linear-backoff policy:
// attempt n sleeps delay*n before attempt n+1.
type retrier struct {
	attempts int
	delay    time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

func newRetrier(attempts int, delay time.Duration) retrier {
	if attempts < 1 {
		attempts = defaultRetryAttempts
	}
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	return retrier{attempts: attempts, delay: delay, sleep: sleepContext}
}

// do runs fn up to the attempt budget. The last error is wrapped in a
// TransientError once the budget is exhausted; context cancellation during
// backoff is returned as-is.
func (r retrier) do(ctx context.Context, op string, fn func() error) error {
	var last error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			last = err
		}
		if attempt == r.attempts {
			break
		}
		if err := r.sleep(ctx, r.delay*time.Duration(attempt)); err != nil {
			return err
		}
	}
	return &TransientError{Op: op, Attempts: r.attempts, Err: last}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
