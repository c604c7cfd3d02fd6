package trigger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/GoCodeAlone/modlife"
)

// File stops once a file appears at path. The parent directory is watched,
// so the file does not need to exist when the trigger is armed. A file that
// is already present fires immediately.
func File(path string) Trigger {
	return func(stopper Stopper, logger modlife.Logger) (func(), error) {
		target, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("stop file %s: %w", path, err)
		}
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("create stop file watcher: %w", err)
		}
		if err := watcher.Add(filepath.Dir(target)); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
		}

		go func() {
			if _, err := os.Stat(target); err == nil {
				requestStop(stopper, logger, "file", "path", target)
				return
			}
			for {
				select {
				case event, ok := <-watcher.Events:
					if !ok {
						return
					}
					if filepath.Clean(event.Name) != target {
						continue
					}
					if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
						requestStop(stopper, logger, "file", "path", target)
						return
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return
					}
					logger.Error("Stop file watcher error", "path", target, "error", err)
				}
			}
		}()

		return func() { _ = watcher.Close() }, nil
	}
}
