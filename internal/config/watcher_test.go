package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnFileWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("worker_count: 4\n"), 0o644))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Close()

	require.Equal(t, 4, w.Current().WorkerCount)
	startVersion := w.Version()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Watch(ctx) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("worker_count: 9\n"), 0o644))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if w.Version() > startVersion && w.Current().WorkerCount == 9 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected reload to pick up worker_count=9, got %d (version %d)", w.Current().WorkerCount, w.Version())
}

func TestWatcher_IgnoresMalformedEdit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("worker_count: 4\n"), 0o644))

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Watch(ctx) }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("worker_count: -1\n"), 0o644))
	time.Sleep(100 * time.Millisecond)

	require.Equal(t, 4, w.Current().WorkerCount, "malformed/invalid config must not replace the last good snapshot")
}
