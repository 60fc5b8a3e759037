package repo

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 250 * time.Millisecond

// Invalidator drops cached data.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// WatchFixtures invalidates target whenever files under dir change. It
// blocks until ctx is cancelled.
func WatchFixtures(ctx context.Context, dir string, target Invalidator, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	sopDir := filepath.Join(dir, ProceduresDir)
	if err := watcher.Add(sopDir); err != nil {
		logger.Debug("procedure directory not watched", slog.String("dir", sopDir), slog.Any("error", err))
	}
	logger.Info("watching fixtures", slog.String("dir", dir))

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			logger.Debug("fixture changed", slog.String("file", ev.Name), slog.String("op", ev.Op.String()))
			pending = time.After(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("fixture watcher error", slog.Any("error", err))
		case <-pending:
			pending = nil
			if err := target.Invalidate(ctx); err != nil {
				logger.Warn("invalidate after fixture change failed", slog.Any("error", err))
			}
		}
	}
}
