// Package ratelimit implements the adaptive, sharded rate limiter guarding
// the ingest surface (§5, §6.1): a per-client-key token bucket with AIMD
// adjustment and a circuit breaker that trips on sustained error rates.
package ratelimit

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("ratelimit: circuit open")

// Permit is released once the caller has finished the guarded operation.
type Permit interface{ Release() }

// Feedback reports the outcome of a guarded operation back to the limiter
// so it can adapt the fill rate and breaker state.
type Feedback struct {
	StatusCode int
	Latency    time.Duration
	Err        error
	RetryAfter time.Duration
}

// LimiterSnapshot is the observability view exposed via the metrics
// provider (§6.5 ambient stack).
type LimiterSnapshot struct {
	TotalRequests    int64
	Throttled        int64
	Denied           int64
	OpenCircuits     int64
	HalfOpenCircuits int64
	Keys             []KeySummary
}

// KeySummary is one rate-limited client key's current state.
type KeySummary struct {
	Key          string
	FillRate     float64
	CircuitState string
	LastActivity time.Time
}

// AdaptiveRateLimiter shards per-key state across N shards to bound lock
// contention under concurrent ingest load.
type AdaptiveRateLimiter struct {
	cfg           RateLimitConfig
	clock         Clock
	shards        []*keyShard
	mask          uint64
	metricsMu     sync.Mutex
	metrics       LimiterSnapshot
	stopCh        chan struct{}
	evictWG       sync.WaitGroup
	evictInterval time.Duration
	stopOnce      sync.Once
}

type keyShard struct {
	mu   sync.RWMutex
	keys map[string]*clientState
}

// bytesPerCostUnit sets the byte-weighted cost scale for Acquire: a
// webhook notification (a few hundred bytes of JSON) costs one token,
// while a synchronous C3D upload's cost grows with its declared size so a
// handful of large uploads trips throttling the same as a burst of small
// requests (§5 flood protection).
const bytesPerCostUnit = 1 << 20 // 1 MiB per token

// CostForBytes converts a request's payload size into the token-bucket
// cost planRequest reserves. Non-positive sizes (unknown length, e.g. a
// webhook delivery) cost a single token.
func CostForBytes(size int64) float64 {
	if size <= 0 {
		return 1
	}
	cost := float64(size) / float64(bytesPerCostUnit)
	if cost < 1 {
		return 1
	}
	return cost
}

func NewAdaptiveRateLimiter(cfg RateLimitConfig) *AdaptiveRateLimiter {
	if cfg.Shards <= 0 || (cfg.Shards&(cfg.Shards-1)) != 0 {
		cfg.Shards = 16
	}
	if cfg.ClientStateTTL <= 0 {
		cfg.ClientStateTTL = 2 * time.Minute
	}
	shards := make([]*keyShard, cfg.Shards)
	for i := range shards {
		shards[i] = &keyShard{keys: make(map[string]*clientState)}
	}
	interval := cfg.ClientStateTTL / 2
	if interval <= 0 {
		interval = time.Minute
	}
	l := &AdaptiveRateLimiter{
		cfg: cfg, clock: realClock{}, shards: shards,
		mask: uint64(cfg.Shards - 1), stopCh: make(chan struct{}), evictInterval: interval,
	}
	l.startEvictionLoop()
	return l
}

func (l *AdaptiveRateLimiter) WithClock(clock Clock) *AdaptiveRateLimiter {
	if clock != nil {
		l.clock = clock
	}
	return l
}

func (l *AdaptiveRateLimiter) shardIndex(key string) uint64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return uint64(h.Sum32()) & l.mask
}

func (l *AdaptiveRateLimiter) getOrCreate(key string) *clientState {
	idx := l.shardIndex(key)
	shard := l.shards[idx]
	shard.mu.RLock()
	state := shard.keys[key]
	shard.mu.RUnlock()
	if state != nil {
		return state
	}
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if state = shard.keys[key]; state == nil {
		state = newClientState(l.cfg, l.clock.Now())
		shard.keys[key] = state
	}
	return state
}

func (l *AdaptiveRateLimiter) withMetrics(mutate func(*LimiterSnapshot)) {
	l.metricsMu.Lock()
	mutate(&l.metrics)
	l.metricsMu.Unlock()
}

// Acquire blocks (respecting ctx) until the key's token bucket admits one
// single-token request (a webhook delivery), or returns ErrCircuitOpen if
// that key's breaker is tripped. For a synchronous upload whose size is
// known up front, use AcquireN so large payloads cost proportionally more.
func (l *AdaptiveRateLimiter) Acquire(ctx context.Context, key string) (Permit, error) {
	return l.AcquireN(ctx, key, 1)
}

// AcquireN is Acquire with an explicit token cost, typically
// CostForBytes(contentLength) for a synchronous C3D upload.
func (l *AdaptiveRateLimiter) AcquireN(ctx context.Context, key string, cost float64) (Permit, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.cfg.Enabled {
		return immediatePermit{}, nil
	}
	if cost <= 0 {
		cost = 1
	}
	normalized, err := normalizeDomain(key)
	if err != nil {
		return nil, err
	}
	state := l.getOrCreate(normalized)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		now := l.clock.Now()
		wait, err := state.planRequest(l.cfg, now, cost)
		if err != nil {
			if errors.Is(err, ErrCircuitOpen) {
				l.withMetrics(func(m *LimiterSnapshot) { m.Denied++ })
			}
			return nil, err
		}
		if wait <= 0 {
			l.withMetrics(func(m *LimiterSnapshot) { m.TotalRequests++ })
			return immediatePermit{}, nil
		}
		l.withMetrics(func(m *LimiterSnapshot) { m.Throttled++ })
		if !sleepWithContext(ctx, l.clock, wait) {
			return nil, ctx.Err()
		}
	}
}

// Feedback reports the outcome of a previously-acquired operation.
func (l *AdaptiveRateLimiter) Feedback(key string, fb Feedback) {
	if !l.cfg.Enabled {
		return
	}
	normalized, err := normalizeDomain(key)
	if err != nil {
		return
	}
	state := l.getOrCreate(normalized)
	state.applyFeedback(l.cfg, fb, l.clock.Now())
}

func (l *AdaptiveRateLimiter) Snapshot() LimiterSnapshot {
	base := func() LimiterSnapshot {
		l.metricsMu.Lock()
		defer l.metricsMu.Unlock()
		return l.metrics
	}()

	var open, halfOpen int64
	var keys []KeySummary
	for _, shard := range l.shards {
		shard.mu.RLock()
		for name, state := range shard.keys {
			state.mu.Lock()
			cs := "closed"
			switch state.breaker.state {
			case circuitOpen:
				cs = "open"
				open++
			case circuitHalfOpen:
				cs = "half-open"
				halfOpen++
			}
			keys = append(keys, KeySummary{Key: name, FillRate: state.fillRate, CircuitState: cs, LastActivity: state.lastActivity})
			state.mu.Unlock()
		}
		shard.mu.RUnlock()
	}
	base.Keys = keys
	base.OpenCircuits = open
	base.HalfOpenCircuits = halfOpen
	return base
}

type immediatePermit struct{}

func (immediatePermit) Release() {}

func (l *AdaptiveRateLimiter) startEvictionLoop() {
	l.evictWG.Add(1)
	go l.evictLoop()
}

func (l *AdaptiveRateLimiter) evictLoop() {
	defer l.evictWG.Done()
	ticker := time.NewTicker(l.evictInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.stopCh:
			return
		}
	}
}

func (l *AdaptiveRateLimiter) evictIdle() {
	ttl := l.cfg.ClientStateTTL
	if ttl <= 0 {
		return
	}
	now := l.clock.Now()
	for _, shard := range l.shards {
		shard.mu.Lock()
		for key, state := range shard.keys {
			state.mu.Lock()
			idle := now.Sub(state.lastActivity)
			state.mu.Unlock()
			if idle >= ttl {
				delete(shard.keys, key)
			}
		}
		shard.mu.Unlock()
	}
}

// Close stops the background eviction loop. Safe to call more than once.
func (l *AdaptiveRateLimiter) Close() error {
	l.stopOnce.Do(func() {
		close(l.stopCh)
		l.evictWG.Wait()
	})
	return nil
}

func sleepWithContext(ctx context.Context, clock Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	if _, isReal := clock.(realClock); clock != nil && !isReal {
		clock.Sleep(d)
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
