package ratelimit

import (
	"testing"
	"time"
)

func TestAllow(t *testing.T) {
	now := time.Unix(0, 0)
	l := New(2, time.Minute)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatal("first two requests rejected")
	}
	if l.Allow("a") {
		t.Fatal("third request allowed within the window")
	}
	if !l.Allow("b") {
		t.Fatal("keys are not independent")
	}

	now = now.Add(30 * time.Second)
	if !l.Allow("a") {
		t.Fatal("request rejected after a token refilled")
	}
	if l.Allow("a") {
		t.Fatal("refill exceeded the elapsed time")
	}
}

func TestDisabled(t *testing.T) {
	l := New(0, time.Minute)
	for i := 0; i < 100; i++ {
		if !l.Allow("a") {
			t.Fatal("disabled limiter rejected a request")
		}
	}
}

func TestSweep(t *testing.T) {
	now := time.Unix(0, 0)
	l := New(1, time.Minute)
	l.now = func() time.Time { return now }
	l.Allow("old")
	now = now.Add(3 * time.Minute)
	l.Allow("new")

	if removed := l.Sweep(); removed != 1 {
		t.Fatalf("Sweep() = %d, want 1", removed)
	}
	if _, ok := l.buckets["new"]; !ok {
		t.Error("active bucket swept")
	}
}

func TestRetryAfter(t *testing.T) {
	if got := New(6, time.Minute).RetryAfter(); got != 10*time.Second {
		t.Errorf("RetryAfter() = %v, want 10s", got)
	}
}
