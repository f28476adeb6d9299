// Package watcher monitors the filesystem for source/header changes and
// debounces them into batches of paths to re-add to the indexing
// scheduler (spec §4.E's add/remove entry points, driven by live edits
// rather than a one-shot index_all()).
//
// Adapted from the teacher's internal/indexing/watcher.go: same
// fsnotify recursive-watch + debounce-timer shape, recut from the
// teacher's FileWatcher/eventDebouncer (which fed a MasterIndex) to call
// back into an accept predicate and a flat batch callback instead.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/standardbeagle/hctxindex/internal/debug"
)

// EventType distinguishes why a path was flagged.
type EventType int

const (
	Changed EventType = iota
	Removed
)

// AcceptFunc reports whether a path should be watched/re-indexed at all
// (wired to includegraph.Registry.Accepts).
type AcceptFunc func(path string) bool

// BatchFunc receives one debounced batch: every path touched since the
// last flush, mapped to its most recent event type.
type BatchFunc func(events map[string]EventType)

// Watcher recursively watches a root directory and delivers debounced
// batches of changed/removed paths to onBatch.
type Watcher struct {
	fsw     *fsnotify.Watcher
	accept  AcceptFunc
	onBatch BatchFunc
	debounce time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	events map[string]EventType
	timer  *time.Timer
}

// New creates a Watcher. debounce is how long to wait after the last
// event in a burst before delivering a batch (spec's config "watch
// debounce_ms", default 300ms).
func New(accept AcceptFunc, debounce time.Duration, onBatch BatchFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		fsw:      fsw,
		accept:   accept,
		onBatch:  onBatch,
		debounce: debounce,
		ctx:      ctx,
		cancel:   cancel,
		events:   make(map[string]EventType),
	}, nil
}

// Start adds recursive watches under root and begins processing events.
func (w *Watcher) Start(root string) error {
	if err := w.addWatches(root); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.processEvents()

	return nil
}

// Stop cancels event processing and closes the underlying fsnotify
// watcher, waiting for goroutines to exit.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) addWatches(root string) error {
	visited := make(map[string]bool)

	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}

		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[real] {
			return filepath.SkipDir
		}
		visited[real] = true

		if !w.accept(path) {
			return filepath.SkipDir
		}

		if err := w.fsw.Add(path); err != nil {
			debug.LogWatcher("failed to watch %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			debug.LogWatcher("watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if event.Op&fsnotify.Remove != 0 || event.Op&fsnotify.Rename != 0 {
		if w.accept(path) {
			w.addEvent(path, Removed)
		}
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		return
	}

	if info.IsDir() {
		if event.Op&fsnotify.Create != 0 && w.accept(path) {
			if err := w.fsw.Add(path); err != nil {
				debug.LogWatcher("failed to watch new dir %s: %v", path, err)
			}
		}
		return
	}

	if !w.accept(path) {
		return
	}
	w.addEvent(path, Changed)
}

func (w *Watcher) addEvent(path string, et EventType) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.events[path] = et
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	events := w.events
	w.events = make(map[string]EventType)
	w.mu.Unlock()

	if len(events) == 0 {
		return
	}

	debug.LogWatcher("flushing %d debounced events", len(events))
	w.onBatch(events)
}
