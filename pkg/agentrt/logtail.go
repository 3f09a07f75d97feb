package agentrt

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// logTailer is a background goroutine backing one active Log::Watch task.
// It watches a file for writes and forwards newly appended lines to lines,
// grounded on theRebelliousNerd-codenerd's internal/core/mangle_watcher.go
// use of fsnotify for a debounced file watch, simplified here to plain
// tailing.
type logTailer struct {
	path   string
	lines  chan<- string
	log    *slog.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu     sync.Mutex
	offset int64
}

func newLogTailer(path string, lines chan<- string, log *slog.Logger) (*logTailer, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, err
	}

	t := &logTailer{path: path, lines: lines, log: log, stopCh: make(chan struct{})}
	t.wg.Add(1)
	go t.run(watcher)
	return t, nil
}

func (t *logTailer) run(watcher *fsnotify.Watcher) {
	defer t.wg.Done()
	defer watcher.Close()

	t.drain()
	for {
		select {
		case <-t.stopCh:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				t.drain()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			t.log.Warn("log tailer watch error", "path", t.path, "error", err)
		}
	}
}

func (t *logTailer) drain() {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.Open(t.path)
	if err != nil {
		return
	}
	defer f.Close()

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return
	}
	t.offset += int64(len(data))
	if len(data) == 0 {
		return
	}
	emitLines(data, t.lines)
}

func (t *logTailer) stop() {
	close(t.stopCh)
	t.wg.Wait()
	close(t.lines)
}

func emitLines(data []byte, lines chan<- string) {
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines <- string(data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines <- string(data[start:])
	}
}
