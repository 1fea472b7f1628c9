package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads the process config YAML file (§5 "shared resource policy": edits bump a version counter rather
// than mutating state in place, so in-flight readers never see a torn
// config).
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher

	mu      sync.RWMutex
	current Config
	version atomic.Uint64

	isWatching bool
	watchMu    sync.Mutex
}

// NewWatcher loads the initial configuration from path and prepares (but
// does not start) the filesystem watch.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w := &Watcher{path: path, watcher: fsw, current: cfg}
	w.version.Store(1)
	return w, nil
}

// Current returns the most recently loaded configuration snapshot.
func (w *Watcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Version returns the current reload generation, bumped on every
// successful reload (readers can compare to detect staleness).
func (w *Watcher) Version() uint64 {
	return w.version.Load()
}

// Watch starts watching the config file's directory, reloading on any
// write/create event targeting the file itself. Blocks until ctx is
// cancelled or Close is called.
func (w *Watcher) Watch(ctx context.Context) error {
	if w.path == "" {
		<-ctx.Done()
		return nil
	}

	w.watchMu.Lock()
	if w.isWatching {
		w.watchMu.Unlock()
		return fmt.Errorf("config: watcher already running")
	}
	w.isWatching = true
	w.watchMu.Unlock()

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch config directory %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		return // keep serving the last good snapshot; malformed edits are ignored
	}
	if err := cfg.Validate(); err != nil {
		return
	}
	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()
	w.version.Add(1)
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
