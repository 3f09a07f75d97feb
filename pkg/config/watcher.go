package config

import (
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

const scenarioDebounce = 300 * time.Millisecond

// WatchScenarioDir watches dir for create/write/rename events and calls
// onChange (re-loading and re-registering the scenario set) after a quiet
// period, debounced the way julianknutsen-gascity's config watcher handles
// editor rename-swap saves. Returns a cleanup func; if the watcher cannot be
// created, reload is skipped and a no-op cleanup is returned.
func WatchScenarioDir(dir string, onChange func()) func() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("scenario watcher unavailable, hot-reload disabled", "error", err)
		return func() {}
	}
	if err := watcher.Add(dir); err != nil {
		slog.Warn("scenario watcher cannot watch directory", "dir", dir, "error", err)
		_ = watcher.Close()
		return func() {}
	}

	go func() {
		var debounce *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(scenarioDebounce, onChange)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return func() { _ = watcher.Close() }
}
