package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/hctxindex/internal/debug"
	"github.com/standardbeagle/hctxindex/internal/mcpserver"
)

// mcpCommand serves the engine over MCP stdio until interrupted, the
// same lifecycle as the teacher's mcpCommand in cmd/lci/main.go.
func mcpCommand(c *cli.Context) error {
	debug.SetMCPMode(true)

	eng, _, err := newEngine(c)
	if err != nil {
		return debug.Fatal("failed to create engine: %v", err)
	}

	srv := mcpserver.NewServer(eng)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if closeErr := eng.Close(); closeErr != nil {
			debug.LogMCP("failed to persist registry snapshot: %v\n", closeErr)
		}
		if err != nil {
			return debug.Fatal("MCP server error: %v", err)
		}
		return nil
	case sig := <-sigChan:
		debug.LogMCP("received signal %v, shutting down\n", sig)
		cancel()
		err := <-errChan
		if closeErr := eng.Close(); closeErr != nil {
			debug.LogMCP("failed to persist registry snapshot: %v\n", closeErr)
		}
		return err
	}
}
