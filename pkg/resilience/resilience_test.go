package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "test", fastRetry(3), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errBoom
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "test", fastRetry(2), func(ctx context.Context) error {
		calls++
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want wrapping errBoom", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetryPermanentStopsImmediately(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "test", fastRetry(5), func(ctx context.Context) error {
		calls++
		return Permanent(errBoom)
	})
	if err != errBoom {
		t.Fatalf("err = %v, want errBoom unwrapped", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, "test", fastRetry(5), func(ctx context.Context) error { return errBoom })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestComputeDelayCapped(t *testing.T) {
	cfg := withRetryDefaults(RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second, JitterFraction: -1})
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	for i, w := range want {
		if got := computeDelay(i+1, cfg); got != w {
			t.Errorf("attempt %d: delay = %v, want %v", i+1, got, w)
		}
	}
}

func TestCircuitBreakerLifecycle(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker("test", BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})
	cb.now = func() time.Time { return now }

	fail := func() error { return errBoom }
	ok := func() error { return nil }

	cb.Execute(fail)
	if cb.State() != StateClosed {
		t.Fatalf("state after 1 failure = %s, want closed", cb.State())
	}
	cb.Execute(fail)
	if cb.State() != StateOpen {
		t.Fatalf("state after 2 failures = %s, want open", cb.State())
	}
	if err := cb.Execute(ok); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("open breaker err = %v, want ErrCircuitOpen", err)
	}

	now = now.Add(time.Minute)
	if err := cb.Execute(fail); err != errBoom {
		t.Fatalf("probe err = %v, want errBoom", err)
	}
	if cb.State() != StateOpen {
		t.Fatalf("state after failed probe = %s, want open", cb.State())
	}

	now = now.Add(time.Minute)
	if err := cb.Execute(ok); err != nil {
		t.Fatalf("probe err = %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("state after successful probe = %s, want closed", cb.State())
	}
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}

	err = WithTimeout(context.Background(), time.Second, "fast", func(ctx context.Context) error { return errBoom })
	if err != errBoom {
		t.Fatalf("err = %v, want errBoom", err)
	}
}
