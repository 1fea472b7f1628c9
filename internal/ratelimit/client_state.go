package ratelimit

import (
	"math"
	"sync"
	"time"
)

const latencyEWMALambda = 0.2

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

// circuitBreaker trips a client key out of the ingest path once its recent
// webhook/upload failure rate (or a run of consecutive failures) crosses
// the configured threshold, per §5's flood-protection suspension points.
type circuitBreaker struct {
	state             circuitState
	openedAt          time.Time
	halfOpenSuccesses int
	consecutiveFails  int
}

// clientState is the per-ingest-client (normalized remote host) throttling
// state: a token bucket costed by request weight, a failure-rate window
// feeding the breaker, and the breaker itself.
type clientState struct {
	mu sync.Mutex

	bucket   *tokenBucket
	fillRate float64

	latencyEWMA float64
	window      *slidingWindow

	breaker circuitBreaker

	nextEarliest time.Time
	lastActivity time.Time
}

func newClientState(cfg RateLimitConfig, now time.Time) *clientState {
	fill := clampFloat(cfg.InitialRPS, cfg.MinRPS, cfg.MaxRPS)
	capacity := cfg.TokenBucketCapacity
	if capacity <= 0 {
		capacity = fill
	}

	bucket := newTokenBucket(capacity, fill, now)
	windowDur := cfg.StatsWindow
	if windowDur <= 0 {
		windowDur = 30 * time.Second
	}
	bucketDur := cfg.StatsBucket
	if bucketDur <= 0 {
		bucketDur = 2 * time.Second
	}
	window := newSlidingWindow(windowDur, bucketDur)

	return &clientState{
		bucket:      bucket,
		fillRate:    fill,
		latencyEWMA: float64(cfg.LatencyTarget),
		window:      window,
		breaker: circuitBreaker{
			state: circuitClosed,
		},
		lastActivity: now,
	}
}

// applyFeedback folds the outcome of one ingest request (webhook delivery
// or synchronous upload) back into the client's fill rate, failure window,
// and breaker state.
func (cs *clientState) applyFeedback(cfg RateLimitConfig, fb Feedback, now time.Time) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.lastActivity = now

	cs.bucket.refill(now)

	observed := fb.Latency
	if observed <= 0 {
		observed = cfg.LatencyTarget
	}

	cs.latencyEWMA = (1-latencyEWMALambda)*cs.latencyEWMA + latencyEWMALambda*float64(observed)

	shouldDecrease := isThrottleStatus(fb.StatusCode) || isServerErrorStatus(fb.StatusCode) || fb.Err != nil
	if !shouldDecrease {
		degradeThreshold := time.Duration(float64(cfg.LatencyTarget) * cfg.LatencyDegradeFactor)
		if degradeThreshold <= 0 {
			degradeThreshold = 2 * cfg.LatencyTarget
		}
		if observed >= degradeThreshold {
			shouldDecrease = true
		}
	}

	if shouldDecrease {
		cs.fillRate = math.Max(cfg.MinRPS, cs.fillRate*cfg.AIMDDecrease)
	} else if isSuccessfulStatus(fb.StatusCode) {
		cs.fillRate = math.Min(cfg.MaxRPS, cs.fillRate+cfg.AIMDIncrease)
	}

	cs.bucket.setFillRate(cs.fillRate)

	isFailure := isErrorFeedback(fb)
	if cs.window != nil {
		cs.window.record(now, 1, boolToInt(isFailure))
	}

	if isFailure {
		cs.breaker.consecutiveFails++
	} else if isSuccessfulStatus(fb.StatusCode) {
		cs.breaker.consecutiveFails = 0
	}

	if fb.RetryAfter > 0 {
		retryAt := now.Add(fb.RetryAfter)
		if retryAt.After(cs.nextEarliest) {
			cs.nextEarliest = retryAt
		}
	}

	var requests int
	var failureRate float64
	if cs.window != nil {
		requests, _ = cs.window.snapshot(now)
		failureRate = cs.window.failureRate(now)
	}

	cs.updateBreakerAfterFeedback(cfg, now, isFailure, isSuccessfulStatus(fb.StatusCode), failureRate, requests)
}

func (cs *clientState) allowRequestLocked(cfg RateLimitConfig, now time.Time) bool {
	cs.lastActivity = now

	switch cs.breaker.state {
	case circuitClosed:
		return true
	case circuitOpen:
		if now.Sub(cs.breaker.openedAt) >= effectiveOpenDuration(cfg.OpenStateDuration) {
			cs.breaker.state = circuitHalfOpen
			cs.breaker.halfOpenSuccesses = 0
			return true
		}
		return false
	case circuitHalfOpen:
		return true
	default:
		return true
	}
}

func (cs *clientState) allowRequest(cfg RateLimitConfig, now time.Time) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.allowRequestLocked(cfg, now)
}

func (cs *clientState) updateBreakerAfterFeedback(cfg RateLimitConfig, now time.Time, isFailure bool, success bool, failureRate float64, requests int) {
	switch cs.breaker.state {
	case circuitClosed:
		minSamples := cfg.MinSamplesToTrip
		if minSamples <= 0 {
			minSamples = 1
		}
		if (cfg.ErrorRateThreshold > 0 && requests >= minSamples && failureRate >= cfg.ErrorRateThreshold) ||
			(cfg.ConsecutiveFailThreshold > 0 && cs.breaker.consecutiveFails >= cfg.ConsecutiveFailThreshold) {
			cs.openBreaker(now)
		}
	case circuitOpen:
		if now.Sub(cs.breaker.openedAt) >= effectiveOpenDuration(cfg.OpenStateDuration) {
			cs.breaker.state = circuitHalfOpen
			cs.breaker.halfOpenSuccesses = 0
		}
	case circuitHalfOpen:
		if isFailure {
			cs.openBreaker(now)
			return
		}
		if success {
			probes := cfg.HalfOpenProbes
			if probes <= 0 {
				probes = 1
			}
			cs.breaker.halfOpenSuccesses++
			if cs.breaker.halfOpenSuccesses >= probes {
				cs.breaker.state = circuitClosed
				cs.breaker.consecutiveFails = 0
				cs.breaker.halfOpenSuccesses = 0
			}
		}
	}
}

// planRequest combines the breaker gate with a cost-weighted token-bucket
// reservation: it returns how long the caller should wait before
// proceeding, or ErrCircuitOpen if the breaker is currently tripped. cost
// is the request's token weight — 1 for a webhook delivery, proportionally
// more for a large synchronous C3D upload (see CostForBytes in limiter.go).
func (cs *clientState) planRequest(cfg RateLimitConfig, now time.Time, cost float64) (time.Duration, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.allowRequestLocked(cfg, now) {
		return 0, ErrCircuitOpen
	}
	if now.Before(cs.nextEarliest) {
		return cs.nextEarliest.Sub(now), nil
	}
	wait, ok := cs.bucket.Reserve(now, cost)
	if ok {
		return 0, nil
	}
	return wait, nil
}

func (cs *clientState) openBreaker(now time.Time) {
	cs.breaker.state = circuitOpen
	cs.breaker.openedAt = now
	cs.breaker.halfOpenSuccesses = 0
}

func effectiveOpenDuration(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}

func clampFloat(value, min, max float64) float64 {
	if min > 0 && value < min {
		value = min
	}
	if max > 0 && value > max {
		value = max
	}
	if min > 0 && value < min {
		value = min
	}
	return value
}

func isSuccessfulStatus(code int) bool {
	return code >= 200 && code < 400
}

func isThrottleStatus(code int) bool {
	return code == 429 || code == 503
}

func isServerErrorStatus(code int) bool {
	return code >= 500 && code < 600
}

func isErrorFeedback(fb Feedback) bool {
	if fb.Err != nil {
		return true
	}
	if isThrottleStatus(fb.StatusCode) || isServerErrorStatus(fb.StatusCode) {
		return true
	}
	return false
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
