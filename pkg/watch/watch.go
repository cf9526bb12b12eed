// Package watch notifies when template files under a set of root directories
// change. Bursts of events are debounced into a single notification.
package watch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config holds watcher configuration options.
type Config struct {
	// Roots are watched recursively.
	Roots []string
	// Extension limits notifications to files with this suffix. Empty
	// matches every file.
	Extension   string
	DebounceDur time.Duration
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(roots ...string) Config {
	return Config{
		Roots:       roots,
		Extension:   ".html",
		DebounceDur: 250 * time.Millisecond,
	}
}

// Watcher monitors template roots for changes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	logger    *slog.Logger
	extension string
	debounce  time.Duration
	roots     []string
	onChange  chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
}

// New creates a new template watcher.
func New(logger *slog.Logger, cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	return &Watcher{
		fsWatcher: fsw,
		logger:    logger,
		extension: cfg.Extension,
		debounce:  cfg.DebounceDur,
		roots:     cfg.Roots,
		onChange:  make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching every root and its subdirectories. The returned
// channel receives a signal once a burst of changes has settled. Missing
// roots are skipped.
func (w *Watcher) Start() (<-chan struct{}, error) {
	for _, root := range w.roots {
		if err := w.AddRoot(root); err != nil {
			return nil, err
		}
	}
	go w.loop()
	return w.onChange, nil
}

// AddRoot watches root and everything below it.
func (w *Watcher) AddRoot(root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return fmt.Errorf("watching directory %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	w.logger.Debug("Watching template root", "root", root)
	return nil
}

// Stop terminates the watcher and releases resources. It is safe to call
// more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
	})
	return err
}

// loop processes file system events with debouncing.
func (w *Watcher) loop() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.followNewDir(event)
			if !w.isRelevantEvent(event) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			// Drop the signal if one is already pending.
			select {
			case w.onChange <- struct{}{}:
			default:
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Template watcher error", "error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// followNewDir starts watching directories created under a watched root.
func (w *Watcher) followNewDir(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.IsDir() {
		return
	}
	if err := w.AddRoot(event.Name); err != nil {
		w.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
	}
}

// isRelevantEvent checks if the event should trigger a refresh.
func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return w.extension == "" || strings.HasSuffix(event.Name, w.extension)
}
