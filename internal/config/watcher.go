package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchLimitsFile reloads the provider whenever its backing file changes.
// Editors often replace files by rename, so the parent directory is watched
// and events are filtered by name. Blocks until ctx is cancelled.
func WatchLimitsFile(ctx context.Context, provider *LimitsProvider, logger *slog.Logger) error {
	if provider.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(provider.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	target := filepath.Clean(provider.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := provider.Reload(); err != nil {
				logger.Error("limits reload failed, keeping previous tables",
					slog.String("file", provider.path),
					slog.Any("error", err))
				continue
			}
			logger.Info("limit tables reloaded",
				slog.String("file", provider.path),
				slog.String("version", provider.Tables().Version))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("limits watcher error", slog.Any("error", err))
		}
	}
}
