package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/redhat-performance/BugZooka/pkg/logx"
)

// DefaultDebounce coalesces bursts of write events into one reload.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads the configuration file when it changes. Invalid edits are
// logged and skipped; the previous configuration stays active.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(*Config)
	logger   *logx.Logger
}

// NewWatcher creates a watcher that calls onChange with each successfully
// reloaded configuration.
func NewWatcher(path string, onChange func(*Config)) *Watcher {
	return &Watcher{
		path:     path,
		debounce: DefaultDebounce,
		onChange: onChange,
		logger:   logx.NewLogger("config-watcher"),
	}
}

// Watch blocks until the context is canceled. The parent directory is
// watched so editors that replace the file (rename-over) still trigger
// reloads.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	w.logger.Info("watching %s for changes", w.path)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce: restart the timer on every event in the burst.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Error("ignoring invalid config change: %v", err)
		return
	}
	w.logger.Info("configuration reloaded from %s", w.path)
	w.onChange(cfg)
}
