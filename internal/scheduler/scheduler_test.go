package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// blockingIndexer returns an IndexFunc that blocks until its context is
// done or release is closed, counting how many times it starts/finishes.
func blockingIndexer(started, finished *int64, release <-chan struct{}) IndexFunc {
	return func(ctx context.Context, file string) error {
		atomic.AddInt64(started, 1)
		defer atomic.AddInt64(finished, 1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-release:
			return nil
		}
	}
}

func TestScheduler_RespectsConcurrencyLimit(t *testing.T) {
	defer goleak.VerifyNone(t)

	var started, finished int64
	release := make(chan struct{})
	s := New(2, blockingIndexer(&started, &finished, release))

	s.IndexAll([]string{"a.cpp", "b.cpp", "c.cpp"})

	require.Eventually(t, func() bool { return atomic.LoadInt64(&started) == 2 }, time.Second, time.Millisecond)
	assert.True(t, s.Running("a.cpp") || s.Running("b.cpp") || s.Running("c.cpp"))

	close(release)
	s.Wait()
	assert.Equal(t, int64(3), atomic.LoadInt64(&finished))
}

func TestScheduler_ReAddCancelsAndRestarts(t *testing.T) {
	defer goleak.VerifyNone(t)

	var cancelled int32
	release := make(chan struct{})
	indexFn := func(ctx context.Context, file string) error {
		select {
		case <-ctx.Done():
			atomic.AddInt32(&cancelled, 1)
			return ctx.Err()
		case <-release:
			return nil
		}
	}

	s := New(1, indexFn)
	s.Add("a.cpp")
	require.Eventually(t, func() bool { return s.Running("a.cpp") }, time.Second, time.Millisecond)

	s.Add("a.cpp") // supersedes the in-flight run
	require.Eventually(t, func() bool { return atomic.LoadInt32(&cancelled) == 1 }, time.Second, time.Millisecond)
	close(release) // lets the replacement run finish
	s.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&cancelled), "only the superseded run observes cancellation")
}

func TestScheduler_RemoveDropsPendingWithoutStarting(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	var seen []string
	release := make(chan struct{})
	indexFn := func(ctx context.Context, file string) error {
		mu.Lock()
		seen = append(seen, file)
		mu.Unlock()
		<-release
		return nil
	}

	s := New(1, indexFn)
	s.Add("a.cpp") // occupies the only slot
	require.Eventually(t, func() bool { return s.Running("a.cpp") }, time.Second, time.Millisecond)

	s.Add("b.cpp") // queued
	s.Remove("b.cpp")

	close(release)
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a.cpp"}, seen)
}

func TestScheduler_RemoveRunningCancels(t *testing.T) {
	defer goleak.VerifyNone(t)

	done := make(chan struct{})
	indexFn := func(ctx context.Context, file string) error {
		<-ctx.Done()
		close(done)
		return ctx.Err()
	}

	s := New(1, indexFn)
	s.Add("a.cpp")
	require.Eventually(t, func() bool { return s.Running("a.cpp") }, time.Second, time.Millisecond)

	s.Remove("a.cpp")
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("removed task never observed cancellation")
	}
	s.Wait()
}

func TestScheduler_RemoveRunningPromotesPending(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mu sync.Mutex
	var seen []string
	release := make(chan struct{})
	aCancelled := make(chan struct{})

	indexFn := func(ctx context.Context, file string) error {
		mu.Lock()
		seen = append(seen, file)
		mu.Unlock()

		if file == "a.cpp" {
			<-ctx.Done()
			close(aCancelled)
			return ctx.Err()
		}
		<-release
		return nil
	}

	s := New(1, indexFn)
	s.Add("a.cpp") // occupies the only slot
	require.Eventually(t, func() bool { return s.Running("a.cpp") }, time.Second, time.Millisecond)

	s.Add("b.cpp") // queued behind the concurrency limit

	s.Remove("a.cpp") // frees the slot; b.cpp should be promoted immediately

	select {
	case <-aCancelled:
	case <-time.After(time.Second):
		t.Fatal("removed running task never observed cancellation")
	}

	require.Eventually(t, func() bool { return s.Running("b.cpp") }, time.Second, time.Millisecond,
		"Remove should promote a pending file into the freed slot without waiting for another Add")

	close(release)
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a.cpp", "b.cpp"}, seen)
}
