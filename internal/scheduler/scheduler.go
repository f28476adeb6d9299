// Package scheduler implements the spec's component E: a bounded-
// concurrency indexing scheduler with cooperative cancellation (spec §4.E
// "Indexing Scheduler", §5 "Concurrency & Resource Model").
//
// Grounded on original_source/include/Server/Indexer2.h and
// src/Server/Indexer2.cpp's add/remove/index state machine (a running
// map, a pending set, and a fixed concurrency budget). The original runs
// on single-threaded stackful coroutines, where task.cancel() followed by
// task.dispose() is synchronous — the superseded coroutine is fully torn
// down before the replacement starts. Go has no equivalent of synchronous
// coroutine disposal, so this port uses context.Context cancellation plus
// a generation counter per file: a superseded goroutine's completion
// handler checks its generation against the current one and is a no-op if
// it lost the race, rather than assuming cancellation is instantaneous
// (spec §9 "stackful coroutines" redesign note).
package scheduler

import (
	"context"
	"sync"

	"github.com/standardbeagle/hctxindex/internal/debug"
)

// IndexFunc performs the actual indexing work for one file. It should
// return promptly once ctx is done.
type IndexFunc func(ctx context.Context, file string) error

type slot struct {
	cancel context.CancelFunc
	gen    uint64
}

// Scheduler runs at most Concurrency files at once, queuing the rest, and
// re-dispatches a file immediately if Add is called again while it's
// already running (spec §4.E "re-adding a file in flight cancels and
// restarts it").
type Scheduler struct {
	mu sync.Mutex

	concurrency int
	running     map[string]*slot
	pending     map[string]struct{}
	indexFn     IndexFunc
	gen         uint64

	wg sync.WaitGroup
}

// New returns a Scheduler that runs indexFn for at most concurrency files
// concurrently. A concurrency of 0 or less is treated as 1.
func New(concurrency int, indexFn IndexFunc) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{
		concurrency: concurrency,
		running:     make(map[string]*slot),
		pending:     make(map[string]struct{}),
		indexFn:     indexFn,
	}
}

// Add schedules file for indexing (spec §4.E "add"): if file is already
// running, its current task is cancelled and a fresh one is started in
// its place; otherwise file starts immediately if a concurrency slot is
// free, or joins the pending set.
func (s *Scheduler) Add(file string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sl, ok := s.running[file]; ok {
		sl.cancel()
		s.startLocked(file)
		return
	}

	if len(s.running) < s.concurrency {
		delete(s.pending, file)
		s.startLocked(file)
		return
	}

	s.pending[file] = struct{}{}
}

// Remove cancels file's indexing if running, or drops it from the pending
// set if queued (spec §4.E "remove"). Unlike Add, Remove never triggers a
// replacement task for file itself, but if file was occupying a running
// slot, that slot is immediately handed to a pending file rather than
// sitting idle until the next Add.
func (s *Scheduler) Remove(file string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[file]; ok {
		delete(s.pending, file)
		return
	}
	if sl, ok := s.running[file]; ok {
		sl.cancel()
		delete(s.running, file)
		s.promoteLocked()
	}
}

// IndexAll schedules every file in files (spec §4.E "indexAll").
func (s *Scheduler) IndexAll(files []string) {
	for _, f := range files {
		s.Add(f)
	}
}

// Wait blocks until every running and pending task has finished. Intended
// for tests and graceful shutdown, not for steady-state operation.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Running reports whether file currently holds a concurrency slot.
func (s *Scheduler) Running(file string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[file]
	return ok
}

// startLocked assumes s.mu is held. It allocates a new generation and
// context for file, marks it running, and launches its goroutine.
func (s *Scheduler) startLocked(file string) {
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(context.Background())
	s.running[file] = &slot{cancel: cancel, gen: gen}
	s.wg.Add(1)
	go s.run(ctx, file, gen)
}

// run executes indexFn for file and, on completion, either frees its slot
// for a pending file or retires quietly if this run lost a supersede race.
func (s *Scheduler) run(ctx context.Context, file string, gen uint64) {
	defer s.wg.Done()

	err := s.indexFn(ctx, file)
	if err != nil && ctx.Err() == nil {
		debug.LogScheduler("indexing %q failed: %v", file, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.running[file]
	if !ok || sl.gen != gen {
		// A newer Add() call already superseded this run; it already
		// owns (or will own) file's slot in the map. Nothing to do.
		return
	}
	delete(s.running, file)
	s.promoteLocked()
}

// promoteLocked assumes s.mu is held. If any file is pending, it moves
// one into the now-free running slot. A no-op when pending is empty.
func (s *Scheduler) promoteLocked() {
	if len(s.pending) == 0 {
		return
	}
	var next string
	for f := range s.pending {
		next = f
		break
	}
	delete(s.pending, next)
	s.startLocked(next)
}
