package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func acceptAll(string) bool { return true }

func TestWatcher_DetectsFileWrite(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.cpp")
	require.NoError(t, os.WriteFile(file, []byte("int main(){}"), 0o644))

	batches := make(chan map[string]EventType, 4)
	w, err := New(acceptAll, 20*time.Millisecond, func(events map[string]EventType) {
		batches <- events
	})
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start(dir))

	require.NoError(t, os.WriteFile(file, []byte("int main(){return 1;}"), 0o644))

	select {
	case events := <-batches:
		assert.Equal(t, Changed, events[file])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced batch")
	}
}

func TestWatcher_DetectsFileRemove(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.cpp")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	batches := make(chan map[string]EventType, 4)
	w, err := New(acceptAll, 20*time.Millisecond, func(events map[string]EventType) {
		batches <- events
	})
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start(dir))
	require.NoError(t, os.Remove(file))

	select {
	case events := <-batches:
		assert.Equal(t, Removed, events[file])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for remove event")
	}
}

func TestWatcher_SkipsRejectedDirs(t *testing.T) {
	dir := t.TempDir()
	excluded := filepath.Join(dir, "build")
	require.NoError(t, os.Mkdir(excluded, 0o755))

	accept := func(path string) bool { return filepath.Base(path) != "build" }

	batches := make(chan map[string]EventType, 4)
	w, err := New(accept, 20*time.Millisecond, func(events map[string]EventType) {
		batches <- events
	})
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, w.Start(dir))
	require.NoError(t, os.WriteFile(filepath.Join(excluded, "gen.cpp"), []byte("x"), 0o644))

	select {
	case events := <-batches:
		t.Fatalf("expected no batch for excluded dir, got %v", events)
	case <-time.After(200 * time.Millisecond):
	}
}
