// Package watch re-runs an analysis when Dart sources or package manifests
// of a project change.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/panbanda/dartrefs/internal/scanner"
	"github.com/panbanda/dartrefs/pkg/analyzer/imports"
	"github.com/panbanda/dartrefs/pkg/config"
)

// DefaultDebounce is how long a project must be quiet before a change batch fires.
const DefaultDebounce = 500 * time.Millisecond

// Watcher monitors a project and reports batches of changed files.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	config    *config.Config
	debounce  time.Duration
	path      string
	callback  func(changed []string)
	onError   func(error)
	mu        sync.Mutex
	pending   map[string]time.Time
	running   sync.Mutex
}

// NewWatcher creates a watcher for the project at path.
func NewWatcher(path string, cfg *config.Config, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		config:    cfg,
		debounce:  debounce,
		path:      path,
		pending:   make(map[string]time.Time),
	}, nil
}

// SetCallback sets the function called with every batch of changed files.
// Batches never overlap: a batch waits for the previous callback to return.
func (w *Watcher) SetCallback(cb func(changed []string)) {
	w.callback = cb
}

// SetErrorHandler sets the function called with watch errors.
func (w *Watcher) SetErrorHandler(fn func(error)) {
	w.onError = fn
}

// Start watches until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.path); err != nil {
		return err
	}

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			if w.onError != nil {
				w.onError(err)
			}
		}
	}
}

// addTree watches dir and every non-excluded directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			return nil
		}
		if path != w.path && slices.Contains(w.config.Exclude.Dirs, info.Name()) {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// relevant reports whether a change to path can alter the analysis.
func (w *Watcher) relevant(path string) bool {
	if filepath.Base(path) != imports.PubspecFile && !scanner.IsDartFile(path) {
		return false
	}
	rel, err := filepath.Rel(w.path, path)
	if err != nil {
		rel = path
	}
	return !w.config.ShouldExclude(rel)
}

// handleEvent processes a filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	path := event.Name
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := w.addTree(path); err != nil && w.onError != nil {
				w.onError(err)
			}
			return
		}
	}
	if !w.relevant(path) {
		return
	}

	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

// processDebounced flushes pending changes until ctx is cancelled.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPending()
		}
	}
}

// processPending fires one batch once no change arrived for the debounce period.
func (w *Watcher) processPending() {
	batch := w.takeReady(time.Now())
	if len(batch) == 0 || w.callback == nil {
		return
	}
	w.running.Lock()
	defer w.running.Unlock()
	w.callback(batch)
}

// takeReady removes and returns the pending paths, sorted, when the newest
// change is older than the debounce period.
func (w *Watcher) takeReady(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) == 0 {
		return nil
	}
	var batch []string
	for path, lastMod := range w.pending {
		if now.Sub(lastMod) < w.debounce {
			return nil
		}
		batch = append(batch, path)
	}
	clear(w.pending)
	slices.Sort(batch)
	return batch
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsWatcher.Close()
}

// WatchedDirs returns the watched directories.
func (w *Watcher) WatchedDirs() []string {
	return w.fsWatcher.WatchList()
}
