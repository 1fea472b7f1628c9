// Package cache implements the Analytics Cache (C9): a TTL-bounded,
// out-of-band hot store for computed analytics, backed by Redis. It is
// never authoritative — the Artifact Store wins on any read-after-cache-miss
// — so read failures are reported as misses rather than errors (§4.9);
// write failures are returned to the caller, which treats them as
// best-effort.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clinictrack/emgcore/internal/orchestrator"
	"github.com/clinictrack/emgcore/pkg/models"
)

// DefaultTTL bounds how long a cached analytics payload survives before a
// caller falls through to the Artifact Store regardless of whether anyone
// has invalidated it (§4.9 "TTL-bounded").
const DefaultTTL = 15 * time.Minute

// keyPrefix namespaces every key this package writes, so a shared Redis
// instance can host other consumers without collision.
const keyPrefix = "emgcore:analytics:"

// Cache is the Redis-backed implementation of orchestrator.Cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// Open connects to Redis at addr and verifies reachability with a PING.
func Open(ctx context.Context, addr string, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: connect: %w", err)
	}
	return &Cache{client: client, ttl: ttl}, nil
}

// Close releases the underlying Redis connection.
func (c *Cache) Close() error { return c.client.Close() }

var _ orchestrator.Cache = (*Cache)(nil)

func key(sessionID string) string { return keyPrefix + sessionID }

// Set stores entry under sessionID with the configured TTL.
func (c *Cache) Set(ctx context.Context, sessionID string, entry models.AnalyticsCacheEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cache: marshal entry: %w", err)
	}
	if err := c.client.Set(ctx, key(sessionID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set: %w", err)
	}
	return nil
}

// Get returns the cached entry for sessionID. A miss is reported as
// (nil, false, nil) — never an error — so callers can unconditionally fall
// through to the Artifact Store (§4.9 "a cache miss must never surface as
// an error").
func (c *Cache) Get(ctx context.Context, sessionID string) (*models.AnalyticsCacheEntry, bool, error) {
	payload, err := c.client.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, nil
	}
	var entry models.AnalyticsCacheEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, false, nil
	}
	return &entry, true, nil
}

// TTL reports the configured time-to-live for diagnostics/tests.
func (c *Cache) TTL() time.Duration { return c.ttl }
