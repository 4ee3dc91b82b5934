package watcher

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleWindow is how long a path must stay quiet before it is
// re-verified. Editors and package installs touch files repeatedly.
const settleWindow = 2 * time.Second

// CheckFunc re-verifies one file against the trust database.
type CheckFunc func(path string)

// Watcher monitors a set of roots and re-verifies changed files.
type Watcher struct {
	roots []string
	check CheckFunc
	log   *slog.Logger

	fsw    *fsnotify.Watcher
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[string]time.Time
}

// New creates a Watcher over roots. check is called for every settled
// change.
func New(roots []string, check CheckFunc, logger *slog.Logger) (*Watcher, error) {
	if check == nil {
		return nil, fmt.Errorf("check function cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		roots:   roots,
		check:   check,
		log:     logger,
		stopCh:  make(chan struct{}),
		pending: make(map[string]time.Time),
	}, nil
}

// Start registers the watches and begins processing events.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	w.fsw = fsw

	for _, root := range w.roots {
		if err := w.addRecursive(root); err != nil {
			w.log.Warn("failed to watch root", "root", root, "error", err)
		}
	}

	w.wg.Add(1)
	go w.run()
	return nil
}

// Stop halts event processing and flushes pending checks.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	w.wg.Wait()
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

// addRecursive registers root and every directory below it.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Debug("skipping unreadable watch entry", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			w.log.Debug("failed to add watch", "path", path, "error", err)
		}
		return nil
	})
}

// run processes fsnotify events and fires settled checks on a ticker.
func (w *Watcher) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(settleWindow / 2)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		case <-ticker.C:
			w.flushSettled(time.Now())
		case <-w.stopCh:
			// Final flush regardless of settle time.
			w.flushSettled(time.Now().Add(settleWindow * 2))
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	info, err := os.Lstat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		// New directories join the watch set.
		if event.Op&fsnotify.Create != 0 {
			if err := w.addRecursive(event.Name); err != nil {
				w.log.Debug("failed to watch new directory", "path", event.Name, "error", err)
			}
		}
		return
	}
	if !info.Mode().IsRegular() {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

// flushSettled runs the check for every pending path whose last event
// is older than the settle window relative to now.
func (w *Watcher) flushSettled(now time.Time) {
	w.mu.Lock()
	var due []string
	for path, last := range w.pending {
		if now.Sub(last) >= settleWindow {
			due = append(due, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range due {
		w.log.Debug("re-verifying changed file", "path", path)
		w.check(path)
	}
}
