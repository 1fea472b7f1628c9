package ratelimit

import "time"

// RateLimitConfig tunes the adaptive limiter guarding the ingest surface
// (§5 suspension points / flood protection for the webhook and sync-upload
// entry points). One limiter instance is shared process-wide; keys are
// normalized client hosts.
type RateLimitConfig struct {
	Enabled bool

	InitialRPS          float64
	MinRPS              float64
	MaxRPS              float64
	TokenBucketCapacity float64

	AIMDIncrease         float64
	AIMDDecrease         float64
	LatencyTarget        time.Duration
	LatencyDegradeFactor float64

	ErrorRateThreshold       float64
	MinSamplesToTrip         int
	ConsecutiveFailThreshold int
	OpenStateDuration        time.Duration
	HalfOpenProbes           int

	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	RetryMaxAttempts  int

	StatsWindow    time.Duration
	StatsBucket    time.Duration
	ClientStateTTL time.Duration
	Shards         int
}

// Defaults returns sane process defaults for ingest-surface protection.
func Defaults() RateLimitConfig {
	return RateLimitConfig{
		Enabled:                  true,
		InitialRPS:               5,
		MinRPS:                   1,
		MaxRPS:                   50,
		TokenBucketCapacity:      10,
		AIMDIncrease:             1,
		AIMDDecrease:             0.5,
		LatencyTarget:            200 * time.Millisecond,
		LatencyDegradeFactor:     2.0,
		ErrorRateThreshold:       0.5,
		MinSamplesToTrip:         5,
		ConsecutiveFailThreshold: 5,
		OpenStateDuration:        10 * time.Second,
		HalfOpenProbes:           2,
		RetryBaseDelay:           100 * time.Millisecond,
		RetryMaxDelay:            5 * time.Second,
		RetryMaxAttempts:         3,
		StatsWindow:              30 * time.Second,
		StatsBucket:              2 * time.Second,
		ClientStateTTL:           2 * time.Minute,
		Shards:                   16,
	}
}
