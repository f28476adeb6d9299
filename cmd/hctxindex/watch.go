package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/hctxindex/internal/debug"
	"github.com/standardbeagle/hctxindex/internal/watcher"
)

// watchCommand runs an initial index_all, then keeps the engine current
// as files under the project root change, until interrupted.
func watchCommand(c *cli.Context) error {
	eng, cfg, err := newEngine(c)
	if err != nil {
		return err
	}

	eng.IndexAll()
	eng.Wait()
	if err := eng.Close(); err != nil {
		return err
	}
	debug.LogWatcher("initial index_all complete, watching %s\n", cfg.Project.Root)

	debounce := time.Duration(cfg.Watch.DebounceMs) * time.Millisecond
	w, err := watcher.New(eng.Accepts, debounce, func(events map[string]watcher.EventType) {
		for path, kind := range events {
			switch kind {
			case watcher.Removed:
				eng.Remove(path)
			default:
				eng.Add(path)
			}
		}
		eng.Wait()
		if err := eng.Close(); err != nil {
			debug.LogWatcher("failed to persist registry snapshot: %v\n", err)
		}
	})
	if err != nil {
		return err
	}

	if err := w.Start(cfg.Project.Root); err != nil {
		return err
	}
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		debug.LogWatcher("received signal %v, shutting down\n", sig)
	case <-ctx.Done():
	}
	return eng.Close()
}
