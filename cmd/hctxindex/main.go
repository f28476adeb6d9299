// Command hctxindex drives a header-context-aware C/C++ index engine
// from the shell: index files, run a full index pass, resolve
// symbol references, inspect header contexts, watch a tree for changes,
// or serve the whole thing over MCP for an editor/agent to drive.
//
// Grounded on the teacher's cmd/lci/main.go: same urfave/cli/v2 App
// shape, global flags, and loadConfigWithOverrides helper, recut from
// the teacher's search/tree/debug subcommand set down to the handful of
// operations this engine's Engine type actually exposes.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/hctxindex/internal/config"
	"github.com/standardbeagle/hctxindex/internal/cxxfrontend"
	"github.com/standardbeagle/hctxindex/internal/debug"
	"github.com/standardbeagle/hctxindex/internal/engine"
	"github.com/standardbeagle/hctxindex/internal/version"
)

// loadConfigWithOverrides loads configuration for --root (or cwd) and
// applies the --include/--exclude flag overrides on top of it.
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path %q: %w", root, err)
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load config for %s: %w", absRoot, err)
	}
	cfg.Project.Root = absRoot

	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = append(cfg.Exclude, excludeFlags...)
	}

	return cfg, config.ValidateConfig(cfg)
}

// newEngine loads config for c and wires it to a fresh tree-sitter-cpp
// Engine. Every subcommand action starts here.
func newEngine(c *cli.Context) (*engine.Engine, *config.Config, error) {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return nil, nil, err
	}

	eng, err := engine.New(cfg, cxxfrontend.New())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return eng, cfg, nil
}

func main() {
	app := &cli.App{
		Name:                   "hctxindex",
		Usage:                  "Header-context-aware C/C++ symbol index",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root directory (overrides config, default: cwd)",
			},
			&cli.StringSliceFlag{
				Name:  "include",
				Usage: "Include files matching glob patterns (e.g. --include 'src/**/*.cpp')",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Exclude files matching glob patterns, in addition to the config defaults",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "index",
				Usage:     "Schedule one or more files for indexing and wait for completion",
				ArgsUsage: "<file> [file...]",
				Action:    indexCommand,
			},
			{
				Name:    "index-all",
				Aliases: []string{"all"},
				Usage:   "Index every file in the compilation database",
				Action:  indexAllCommand,
			},
			{
				Name:      "lookup",
				Usage:     "Resolve every reference to the symbol at file:offset",
				ArgsUsage: "<file> <offset>",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "relation",
						Usage: "Restrict to these relation kinds (default: all); repeatable",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output as JSON",
					},
				},
				Action: lookupCommand,
			},
			{
				Name:      "contexts",
				Usage:     "List the header contexts recorded for a header path",
				ArgsUsage: "<header>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output as JSON"},
				},
				Action: contextsCommand,
			},
			{
				Name:   "watch",
				Usage:  "Index the project, then watch for changes and keep it current",
				Action: watchCommand,
			},
			{
				Name:   "mcp",
				Usage:  "Start an MCP server exposing the engine over stdio",
				Action: mcpCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	debug.LogIndexing("hctxindex %s starting\n", version.Version)
}
