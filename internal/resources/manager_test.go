package resources

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestManagerCacheStoreAndGet(t *testing.T) {
	tmp := t.TempDir()
	cfg := Config{
		CacheCapacity:      2,
		SpillDirectory:     filepath.Join(tmp, "spill"),
		CheckpointPath:     filepath.Join(tmp, "checkpoint.log"),
		CheckpointInterval: 5 * time.Millisecond,
	}

	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	defer mgr.Close()

	artifact := &Artifact{ContentSHA256: "abc123", Bytes: []byte("c3d-bytes"), DownloadedAt: time.Now()}

	if err := mgr.StoreArtifact("abc123", artifact); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	got, hit, err := mgr.GetArtifact("abc123")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !hit {
		t.Fatalf("expected cache hit")
	}
	if string(got.Bytes) != "c3d-bytes" {
		t.Fatalf("expected bytes 'c3d-bytes', got %s", got.Bytes)
	}
}

func TestManagerSpillover(t *testing.T) {
	tmp := t.TempDir()
	spillDir := filepath.Join(tmp, "spill")
	cfg := Config{
		CacheCapacity:      1,
		SpillDirectory:     spillDir,
		CheckpointInterval: 5 * time.Millisecond,
	}

	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	defer mgr.Close()

	if err := mgr.StoreArtifact("hash-one", &Artifact{ContentSHA256: "hash-one", Bytes: []byte("one")}); err != nil {
		t.Fatalf("store1 failed: %v", err)
	}
	if err := mgr.StoreArtifact("hash-two", &Artifact{ContentSHA256: "hash-two", Bytes: []byte("two")}); err != nil {
		t.Fatalf("store2 failed: %v", err)
	}

	entries, err := os.ReadDir(spillDir)
	if err != nil {
		t.Fatalf("read spill dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("expected spill entries")
	}

	artifact, hit, err := mgr.GetArtifact("hash-one")
	if err != nil {
		t.Fatalf("get spilled: %v", err)
	}
	if !hit {
		t.Fatalf("expected hit from spill")
	}
	if string(artifact.Bytes) != "one" {
		t.Fatalf("expected recovered bytes 'one', got %s", artifact.Bytes)
	}
}

func TestManagerCheckpoint(t *testing.T) {
	tmp := t.TempDir()
	checkpoint := filepath.Join(tmp, "checkpoint.log")

	cfg := Config{
		CacheCapacity:      1,
		CheckpointPath:     checkpoint,
		CheckpointInterval: 1 * time.Millisecond,
	}

	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.Checkpoint("session-a")
	mgr.Checkpoint("session-b")

	mgr.Close()

	data, err := os.ReadFile(checkpoint)
	if err != nil {
		t.Fatalf("expected checkpoint file, got error: %v", err)
	}

	contents := string(data)
	if !containsLine(contents, "session-a") || !containsLine(contents, "session-b") {
		t.Fatalf("missing checkpoint entries: %s", contents)
	}
}

func TestManagerAcquireRelease(t *testing.T) {
	cfg := Config{MaxInFlight: 1}
	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	defer mgr.Close()

	if err := mgr.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire success: %v", err)
	}

	acquireDone := make(chan error, 1)
	go func() {
		acquireDone <- mgr.Acquire(context.Background())
	}()

	select {
	case <-acquireDone:
		t.Fatalf("expected acquire to block until release")
	case <-time.After(20 * time.Millisecond):
	}

	mgr.Release()

	select {
	case err := <-acquireDone:
		if err != nil {
			t.Fatalf("expected acquire to succeed after release: %v", err)
		}
	case <-time.After(50 * time.Millisecond):
		t.Fatalf("acquire did not complete after release")
	}
}

// TestConcurrentArtifactAccess guards against the race condition the
// original page-cache manager was once fixed for: concurrent readers, some
// reading fields of the returned artifact, must not deadlock on the shared
// cache.
func TestConcurrentArtifactAccess(t *testing.T) {
	tmp := t.TempDir()
	cfg := Config{
		CacheCapacity:      1,
		SpillDirectory:     tmp + "/spill",
		CheckpointInterval: 5 * time.Millisecond,
	}

	mgr, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	defer mgr.Close()

	artifact := &Artifact{
		ContentSHA256: "race-test",
		Bytes:         []byte("race-bytes"),
		DownloadedAt:  time.Now(),
	}

	if err := mgr.StoreArtifact("race-test", artifact); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	var wg sync.WaitGroup
	const numGoroutines = 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				_, _, _ = mgr.GetArtifact("race-test")
				time.Sleep(time.Millisecond)
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				retrieved, found, err := mgr.GetArtifact("race-test")
				if err == nil && found && retrieved != nil {
					_ = retrieved.DownloadedAt
				}
				time.Sleep(time.Millisecond)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("test timed out - possible deadlock")
	}
}

func containsLine(contents, target string) bool {
	for _, line := range strings.Split(strings.TrimSpace(contents), "\n") {
		if line == target {
			return true
		}
	}
	return false
}
