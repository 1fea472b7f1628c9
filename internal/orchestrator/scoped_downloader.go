package orchestrator

import (
	"context"

	"github.com/clinictrack/emgcore/internal/resources"
)

// ScopedDownloader wraps a raw Downloader with the resource manager's
// in-flight concurrency guard and downloaded-bytes cache (§5 "resolved
// through Downloader under the resource manager's scoped concurrency
// guard"): a retry of the same fileRef after a transient pipeline failure
// doesn't re-fetch from object storage, and concurrent downloads are
// bounded by Config.MaxInFlight regardless of worker-pool size. The slot is
// held only for the download itself, not for the rest of a session's run.
type ScopedDownloader struct {
	raw Downloader
	mgr *resources.Manager
}

// NewScopedDownloader wraps raw with mgr's concurrency guard and cache.
func NewScopedDownloader(raw Downloader, mgr *resources.Manager) *ScopedDownloader {
	return &ScopedDownloader{raw: raw, mgr: mgr}
}

var _ Downloader = (*ScopedDownloader)(nil)

// Download serves a repeat request for the same fileRef from the artifact
// cache without taking a slot; otherwise it acquires a scoped slot,
// delegates to raw and caches the result before releasing the slot.
func (d *ScopedDownloader) Download(ctx context.Context, fileRef string) ([]byte, error) {
	if artifact, found, err := d.mgr.GetArtifact(fileRef); err == nil && found {
		return artifact.Bytes, nil
	}

	if err := d.mgr.Acquire(ctx); err != nil {
		return nil, err
	}
	defer d.mgr.Release()

	raw, err := d.raw.Download(ctx, fileRef)
	if err != nil {
		return nil, err
	}

	_ = d.mgr.StoreArtifact(fileRef, &resources.Artifact{ContentSHA256: fileRef, Bytes: raw})
	return raw, nil
}
