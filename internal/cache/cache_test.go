package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/clinictrack/emgcore/pkg/models"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := Open(context.Background(), mr.Addr(), 50*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_SetThenGetRoundTrips(t *testing.T) {
	c := newTestCache(t)
	entry := models.AnalyticsCacheEntry{
		SessionID:    "sess-1",
		Channels:     map[string]models.ChannelAnalytics{"Left Quadriceps": {ChannelName: "Left Quadriceps"}},
		CacheVersion: "emgcore-1",
		CachedAt:     time.Now(),
	}
	require.NoError(t, c.Set(context.Background(), "sess-1", entry))

	got, found, err := c.Get(context.Background(), "sess-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "sess-1", got.SessionID)
	require.Contains(t, got.Channels, "Left Quadriceps")
}

func TestCache_MissIsNeverAnError(t *testing.T) {
	c := newTestCache(t)
	got, found, err := c.Get(context.Background(), "does-not-exist")
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, got)
}

func TestCache_EntryExpiresAfterTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := Open(context.Background(), mr.Addr(), 50*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Set(context.Background(), "sess-2", models.AnalyticsCacheEntry{SessionID: "sess-2"}))

	// miniredis does not expire keys on wall-clock time; advance its clock
	// past the configured TTL instead.
	mr.FastForward(100 * time.Millisecond)

	_, found, err := c.Get(context.Background(), "sess-2")
	require.NoError(t, err)
	require.False(t, found, "entry should have expired after the configured TTL")
}
