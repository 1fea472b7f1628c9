package ratelimit

import (
	"testing"
	"time"
)

func TestSlidingWindowFailureRate(t *testing.T) {
	now := time.Unix(0, 0)
	sw := newSlidingWindow(10*time.Second, 1*time.Second)

	sw.record(now, 1, 0)                           // clean webhook delivery
	sw.record(now.Add(500*time.Millisecond), 1, 1) // validation failure
	sw.record(now.Add(1500*time.Millisecond), 1, 0)

	requests, failures := sw.snapshot(now.Add(2 * time.Second))
	if requests != 3 || failures != 1 {
		t.Fatalf("expected requests=3 failures=1, got requests=%d failures=%d", requests, failures)
	}

	rate := sw.failureRate(now.Add(2 * time.Second))
	if rate < 0.32 || rate > 0.35 {
		t.Fatalf("expected failure rate about 0.333, got %f", rate)
	}
}

func TestSlidingWindowEviction(t *testing.T) {
	now := time.Unix(0, 0)
	sw := newSlidingWindow(5*time.Second, 1*time.Second)

	sw.record(now, 1, 1)
	sw.record(now.Add(2*time.Second), 1, 0)
	sw.record(now.Add(4*time.Second), 1, 0)

	requests, failures := sw.snapshot(now.Add(4 * time.Second))
	if requests != 3 || failures != 1 {
		t.Fatalf("expected requests=3 failures=1 before eviction, got %d/%d", requests, failures)
	}

	requests, failures = sw.snapshot(now.Add(6 * time.Second))
	if requests != 2 || failures != 0 {
		t.Fatalf("expected old bucket evicted, got %d/%d", requests, failures)
	}

	rate := sw.failureRate(now.Add(6 * time.Second))
	if rate != 0 {
		t.Fatalf("expected zero failure rate after eviction, got %f", rate)
	}
}
