package factories

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"avatarkit/core"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of events editors produce on save.
const reloadDebounce = 200 * time.Millisecond

// WatchSettings reloads the settings file at path whenever it changes and
// passes the parsed settings, credentials injected, to onChange. Files that
// fail to parse are logged and skipped. It blocks until ctx is done.
func WatchSettings(ctx context.Context, path string, keys APIKeys, onChange func(SettingsConfig), logger *core.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file instead of writing it.
	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch dir %q: %w", filepath.Dir(target), err)
	}

	return watchLoop(ctx, watcher, target, keys, onChange, logger)
}

// watchLoop runs until ctx is done or the watcher closes. Watcher errors are
// logged and do not stop reloading.
func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, target string, keys APIKeys, onChange func(SettingsConfig), logger *core.Logger) error {
	if logger == nil {
		logger = core.GetLogger()
	}
	timer := time.NewTimer(reloadDebounce)
	timer.Stop()
	defer timer.Stop()

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
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(reloadDebounce)
			}
		case <-timer.C:
			settings, err := SettingsConfigFromFile(target)
			if err != nil {
				logger.Warn("settings reload skipped", "path", target, "error", err)
				continue
			}
			settings.InjectAPIKeys(keys)
			logger.Info("settings reloaded", "path", target)
			onChange(settings)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("settings watcher error", "path", target, "error", err)
		}
	}
}
