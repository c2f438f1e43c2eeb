package ledger

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrySucceedsOnThirdAttempt(t *testing.T) {
	var delays []time.Duration
	r := newRetrier(3, 2*time.Second)
	r.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	calls := 0
	err := r.do(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return errors.New("rpc down")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(delays) != 2 {
		t.Fatalf("expected exactly 2 recorded delays, got %d", len(delays))
	}
	if delays[0] != 2*time.Second || delays[1] != 4*time.Second {
		t.Fatalf("expected linear backoff [2s 4s], got %v", delays)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	r := newRetrier(3, time.Second)
	r.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	calls := 0
	cause := errors.New("rpc down")
	err := r.do(context.Background(), "getAssetPrice", func() error {
		calls++
		return cause
	})
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	var transient *TransientError
	if !errors.As(err, &transient) {
		t.Fatalf("expected TransientError, got %v", err)
	}
	if transient.Attempts != 3 || transient.Op != "getAssetPrice" {
		t.Fatalf("unexpected transient metadata: %+v", transient)
	}
	if !errors.Is(err, cause) {
		t.Fatal("transient error should wrap the last failure")
	}
	if !IsTransient(err) {
		t.Fatal("IsTransient should report true")
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newRetrier(3, time.Second)
	r.sleep = sleepContext

	err := r.do(ctx, "op", func() error { return errors.New("rpc down") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if IsTransient(err) {
		t.Fatal("cancellation must not be reported as transient")
	}
}

func TestRetrierDefaults(t *testing.T) {
	r := newRetrier(0, 0)
	if r.attempts != defaultRetryAttempts {
		t.Fatalf("expected default attempts, got %d", r.attempts)
	}
	if r.delay != defaultRetryDelay {
		t.Fatalf("expected default delay, got %v", r.delay)
	}
}
