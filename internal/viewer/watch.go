package viewer

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchedOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename

// Watch calls onChange with the base name of every file in dir that is
// written, created or renamed, until ctx is done. Watching the directory
// catches atomic replacements and days whose file does not exist yet.
func Watch(ctx context.Context, dir string, onChange func(name string), logger *zap.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-w.Events:
			if !ok {
				return nil
			}
			if evt.Op&watchedOps == 0 {
				continue
			}
			logger.Debug("archive dir changed", zap.String("file", evt.Name), zap.Stringer("op", evt.Op))
			onChange(filepath.Base(evt.Name))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))
		}
	}
}
