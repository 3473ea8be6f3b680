// Package watcher monitors a drop directory and reports files placed there,
// so documents can be staged for submission by copying them into a folder
// instead of typing paths.
package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"lira/internal/log"
)

// Watcher monitors the drop directory and sends the path of each file that
// settles there.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	debounce  time.Duration
	staged    chan string
	done      chan struct{}
}

// Config holds watcher configuration options.
type Config struct {
	Dir         string
	DebounceDur time.Duration
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		DebounceDur: 500 * time.Millisecond,
	}
}

// New creates a new drop-directory watcher.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher: fsw,
		dir:       cfg.Dir,
		debounce:  cfg.DebounceDur,
		staged:    make(chan string, 16),
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching the drop directory. Returns a channel that receives
// the absolute path of each file once writes to it have settled.
func (w *Watcher) Start() (<-chan string, error) {
	if err := w.fsWatcher.Add(w.dir); err != nil {
		return nil, fmt.Errorf("watching directory %s: %w", w.dir, err)
	}

	go w.loop()

	return w.staged, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

// loop processes file system events, debouncing per path so a file being
// copied in produces a single notification once writes stop.
func (w *Watcher) loop() {
	timers := make(map[string]*time.Timer)
	settled := make(chan string, 16)

	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.isRelevantEvent(event) {
				continue
			}

			path := event.Name
			if timer, exists := timers[path]; exists {
				timer.Reset(w.debounce)
				continue
			}

			timers[path] = time.AfterFunc(w.debounce, func() {
				select {
				case settled <- path:
				case <-w.done:
				}
			})

		case path := <-settled:
			delete(timers, path)
			select {
			case w.staged <- path:
			default:
				log.Warn(log.CatWatch, "staged channel full, dropping file", "path", path)
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatch, "watch error", err)

		case <-w.done:
			return
		}
	}
}

// isRelevantEvent reports whether the event is a create or write of a
// visible file directly inside the drop directory.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return false
	}

	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return filepath.Dir(event.Name) == filepath.Clean(w.dir)
}
