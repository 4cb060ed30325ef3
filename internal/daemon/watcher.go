package daemon

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors filesystem paths and invokes a callback after changes,
// debouncing bursts of events (editors typically emit several per save).
type Watcher struct {
	name         string
	watcher      *fsnotify.Watcher
	onChange     func()
	filter       func(path string) bool
	stopChan     chan struct{}
	changeChan   chan struct{}
	debounceTime time.Duration
}

// NewWatcher creates a watcher that calls onChange after matching events.
// A nil filter accepts every event.
func NewWatcher(name string, debounce time.Duration, filter func(path string) bool, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{
		name:         name,
		watcher:      fsw,
		onChange:     onChange,
		filter:       filter,
		stopChan:     make(chan struct{}),
		changeChan:   make(chan struct{}, 1),
		debounceTime: debounce,
	}, nil
}

// AddFile watches the directory containing path, filtering to that file.
// Watching the parent directory survives editors that replace the file.
func (w *Watcher) AddFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	base := filepath.Base(abs)
	prev := w.filter
	w.filter = func(p string) bool {
		if filepath.Base(p) != base {
			return false
		}
		return prev == nil || prev(p)
	}
	return w.watcher.Add(filepath.Dir(abs))
}

// AddTree recursively watches root and all its subdirectories.
func (w *Watcher) AddTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// Start begins monitoring. Goroutines exit when the context is canceled or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	slog.Info("Starting watcher", "watcher", w.name, "debounce", w.debounceTime)
	go w.watchLoop(ctx)
	go w.debounceLoop(ctx)
}

// Stop stops the watcher and releases the underlying fsnotify resources.
func (w *Watcher) Stop() {
	slog.Info("Stopping watcher", "watcher", w.name)
	close(w.stopChan)
	if err := w.watcher.Close(); err != nil {
		slog.Error("Error closing file watcher", "watcher", w.name, "error", err)
	}
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if w.filter != nil && !w.filter(event.Name) {
				continue
			}
			// New directories need to join the watch set for recursive mode.
			if event.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					if err := w.watcher.Add(event.Name); err == nil {
						slog.Debug("Watching new directory", "watcher", w.name, "path", event.Name)
					}
				}
			}
			slog.Debug("Change detected", "watcher", w.name, "path", event.Name, "op", event.Op.String())
			select {
			case w.changeChan <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Watcher error", "watcher", w.name, "error", err)
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-w.changeChan:
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounceTime)
			timerC = timer.C
		case <-timerC:
			timerC = nil
			if w.onChange != nil {
				w.onChange()
			}
		}
	}
}
