package ratelimit

import "time"

// slidingWindow tracks the recent request/failure counts a client key's
// circuit breaker trips on: a run of webhook deliveries or uploads that
// come back as validation failures, storage errors, or pipeline rejections
// within the window pushes the breaker open (§5, §7 propagation policy).
type slidingWindow struct {
	window     time.Duration
	bucketSize time.Duration
	buckets    map[int64]*windowBucket
}

type windowBucket struct {
	requests int
	failures int
}

func newSlidingWindow(window, bucket time.Duration) *slidingWindow {
	if bucket <= 0 {
		bucket = time.Second
	}
	if window < bucket {
		window = bucket
	}
	return &slidingWindow{
		window:     window,
		bucketSize: bucket,
		buckets:    make(map[int64]*windowBucket),
	}
}

// record tallies one ingest outcome (request count plus, if it failed, the
// failure count) into the bucket covering now.
func (sw *slidingWindow) record(now time.Time, requests, failures int) {
	if requests == 0 && failures == 0 {
		return
	}
	bucketStart := now.Truncate(sw.bucketSize)
	key := bucketStart.UnixNano()

	if bucket, ok := sw.buckets[key]; ok {
		bucket.requests += requests
		bucket.failures += failures
	} else {
		sw.buckets[key] = &windowBucket{requests: requests, failures: failures}
	}

	sw.evict(now)
}

func (sw *slidingWindow) snapshot(now time.Time) (requests, failures int) {
	sw.evict(now)

	cutoff := now.Add(-sw.window)

	for key, bucket := range sw.buckets {
		start := time.Unix(0, key)
		if start.Before(cutoff) {
			continue
		}
		requests += bucket.requests
		failures += bucket.failures
	}

	return requests, failures
}

// failureRate is the proportion of ingest requests in the window that
// failed, the signal the circuit breaker trips on (cfg.ErrorRateThreshold).
func (sw *slidingWindow) failureRate(now time.Time) float64 {
	requests, failures := sw.snapshot(now)
	if requests == 0 {
		return 0
	}
	return float64(failures) / float64(requests)
}

func (sw *slidingWindow) evict(now time.Time) {
	cutoff := now.Add(-sw.window)
	for key := range sw.buckets {
		start := time.Unix(0, key)
		if start.Before(cutoff) {
			delete(sw.buckets, key)
		}
	}
}
