package schema

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadFunc receives each successfully rebuilt schema.
type ReloadFunc func(*Schema)

// Watcher rebuilds the schema when its file changes. A definition that
// fails to build is logged and the previous schema stays current.
type Watcher struct {
	path     string
	onReload ReloadFunc
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.RWMutex
	current *Schema
}

// NewWatcher watches path, starting from the already-built current schema.
func NewWatcher(path string, current *Schema, onReload ReloadFunc, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{
		path:     path,
		current:  current,
		onReload: onReload,
		debounce: 100 * time.Millisecond,
		logger:   logger,
	}
}

// Current returns the latest schema.
func (w *Watcher) Current() *Schema {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Reload rebuilds the schema from disk.
func (w *Watcher) Reload() error {
	s, err := Load(w.path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.current = s
	w.mu.Unlock()
	w.logger.Debug("schema reloaded", "path", w.path, "cubes", len(s.Cubes))
	if w.onReload != nil {
		w.onReload(s)
	}
	return nil
}

// Run watches the schema file until ctx is done. The directory is
// watched rather than the file so editors that replace the file on save
// are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	abs, err := filepath.Abs(w.path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || filepath.Clean(event.Name) != abs {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				if err := w.Reload(); err != nil {
					w.logger.Error("schema reload failed", "path", w.path, "error", err)
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}
