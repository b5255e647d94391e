package corpus

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce coalesces the burst of events a single write produces.
const DefaultDebounce = 250 * time.Millisecond

// Watch calls reload each time the file at filePath is created, written or
// renamed into place, until ctx ends. The parent directory is watched because
// the local store replaces the file by rename. Reload errors are logged and
// the watch continues.
func Watch(ctx context.Context, filePath string, debounce time.Duration, reload func(context.Context) error, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(filePath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(filePath)

	timer := time.NewTimer(debounce)
	timer.Stop()
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
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(debounce)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("corpus watcher error", zap.Error(werr))
		case <-timer.C:
			if err := reload(ctx); err != nil {
				logger.Error("corpus reload failed", zap.String("path", target), zap.Error(err))
				continue
			}
			logger.Info("corpus reloaded", zap.String("path", target))
		}
	}
}
