package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinictrack/emgcore/internal/resources"
)

type countingDownloader struct {
	calls int
	bytes []byte
}

func (d *countingDownloader) Download(_ context.Context, _ string) ([]byte, error) {
	d.calls++
	return d.bytes, nil
}

func TestScopedDownloader_CachesRepeatDownloads(t *testing.T) {
	mgr, err := resources.NewManager(resources.Config{CacheCapacity: 8, MaxInFlight: 2})
	require.NoError(t, err)
	defer mgr.Close()

	raw := &countingDownloader{bytes: []byte("c3d bytes")}
	scoped := NewScopedDownloader(raw, mgr)

	first, err := scoped.Download(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("c3d bytes"), first)

	second, err := scoped.Download(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("c3d bytes"), second)

	assert.Equal(t, 1, raw.calls, "second download for the same ref should be served from the artifact cache")
}

func TestScopedDownloader_DistinctRefsBothHitRawDownloader(t *testing.T) {
	mgr, err := resources.NewManager(resources.Config{CacheCapacity: 8, MaxInFlight: 2})
	require.NoError(t, err)
	defer mgr.Close()

	raw := &countingDownloader{bytes: []byte("c3d bytes")}
	scoped := NewScopedDownloader(raw, mgr)

	_, err = scoped.Download(context.Background(), "ref-1")
	require.NoError(t, err)
	_, err = scoped.Download(context.Background(), "ref-2")
	require.NoError(t, err)

	assert.Equal(t, 2, raw.calls)
}
