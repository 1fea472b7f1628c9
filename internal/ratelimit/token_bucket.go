package ratelimit

import (
	"math"
	"time"
)

// tokenBucket meters ingest requests by cost rather than by raw count: a
// webhook notification costs one token, but a synchronous upload costs a
// number of tokens proportional to its declared size (see CostForBytes in
// limiter.go), so a handful of large C3D files can trip throttling the same
// way a burst of small requests would (§5 flood protection).
type tokenBucket struct {
	capacity   float64
	fillRate   float64
	tokens     float64
	lastRefill time.Time
}

func newTokenBucket(capacity, fillRate float64, now time.Time) *tokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	if fillRate <= 0 {
		fillRate = capacity
	}

	return &tokenBucket{
		capacity:   capacity,
		fillRate:   fillRate,
		tokens:     capacity,
		lastRefill: now,
	}
}

func (tb *tokenBucket) refill(now time.Time) {
	if now.Before(tb.lastRefill) {
		return
	}

	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	refillAmount := elapsed * tb.fillRate
	if refillAmount <= 0 {
		return
	}

	tb.tokens = math.Min(tb.capacity, tb.tokens+refillAmount)
	tb.lastRefill = now
}

// Reserve draws cost tokens (§5: an ingest request's byte-weighted cost,
// not always 1) and reports how long the caller must wait if the bucket
// can't cover it immediately.
func (tb *tokenBucket) Reserve(now time.Time, cost float64) (time.Duration, bool) {
	if cost <= 0 {
		return 0, true
	}

	tb.refill(now)

	if tb.tokens >= cost {
		tb.tokens -= cost
		return 0, true
	}

	deficit := cost - tb.tokens
	if tb.fillRate <= 0 {
		return time.Duration(math.MaxInt64), false
	}

	waitSeconds := deficit / tb.fillRate
	if waitSeconds < 0 {
		waitSeconds = 0
	}

	return time.Duration(waitSeconds * float64(time.Second)), false
}

func (tb *tokenBucket) setFillRate(rate float64) {
	if rate <= 0 {
		return
	}
	tb.fillRate = rate
}
