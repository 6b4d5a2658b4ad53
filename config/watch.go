package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a configuration file whenever it changes.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *slog.Logger
}

// NewWatcher starts watching the configuration file at path. The directory
// is watched rather than the file, so that editors replacing the file are
// noticed too.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve config path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("cannot create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("cannot add config directory to watcher: %w", err)
	}
	return &Watcher{path: path, watcher: watcher, logger: logger}, nil
}

// Run calls fn with the new configuration after every change of the file,
// until ctx is done. Files that fail to load are logged and skipped.
func (w *Watcher) Run(ctx context.Context, fn func(Config)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				w.logger.Debug("fsnotify watcher channel is closed.")
				return nil
			}
			if filepath.Clean(event.Name) != w.path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				w.logger.Warn("cannot reload config.", "path", w.path, "error", err)
				continue
			}
			w.logger.Info("config reloaded.", "path", w.path)
			fn(cfg)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Watch is a shorthand for NewWatcher followed by Run.
func Watch(ctx context.Context, path string, logger *slog.Logger, fn func(Config)) error {
	w, err := NewWatcher(path, logger)
	if err != nil {
		return err
	}
	defer w.Close()
	return w.Run(ctx, fn)
}
