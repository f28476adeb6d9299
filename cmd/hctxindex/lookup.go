package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/hctxindex/internal/idx"
	"github.com/standardbeagle/hctxindex/pkg/pathutil"
)

var relationKindsByName = map[string]idx.RelationKind{
	"declaration":     idx.RelationDeclaration,
	"definition":      idx.RelationDefinition,
	"reference":       idx.RelationReference,
	"read":            idx.RelationRead,
	"write":           idx.RelationWrite,
	"interface":       idx.RelationInterface,
	"implementation":  idx.RelationImplementation,
	"type_definition": idx.RelationTypeDefinition,
	"base":            idx.RelationBase,
	"derived":         idx.RelationDerived,
	"constructor":     idx.RelationConstructor,
	"destructor":      idx.RelationDestructor,
	"caller":          idx.RelationCaller,
	"callee":          idx.RelationCallee,
}

func parseRelationMask(names []string) (idx.RelationKind, error) {
	if len(names) == 0 {
		return idx.AllRelationKinds, nil
	}
	var mask idx.RelationKind
	for _, name := range names {
		kind, ok := relationKindsByName[name]
		if !ok {
			return 0, fmt.Errorf("unknown relation kind %q", name)
		}
		mask |= kind
	}
	return mask, nil
}

func lookupCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("usage: hctxindex lookup <file> <offset>")
	}

	file := c.Args().Get(0)
	if !filepath.IsAbs(file) {
		abs, err := filepath.Abs(file)
		if err != nil {
			return fmt.Errorf("failed to resolve %q: %w", file, err)
		}
		file = abs
	}

	offset, err := strconv.ParseUint(c.Args().Get(1), 10, 32)
	if err != nil {
		return fmt.Errorf("invalid offset %q: %w", c.Args().Get(1), err)
	}

	mask, err := parseRelationMask(c.StringSlice("relation"))
	if err != nil {
		return err
	}

	eng, cfg, err := newEngine(c)
	if err != nil {
		return err
	}
	eng.IndexAll()
	eng.Wait()
	if err := eng.Close(); err != nil {
		return err
	}

	locations, err := eng.Lookup(file, uint32(offset), mask)
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	if c.Bool("json") {
		return json.NewEncoder(os.Stdout).Encode(locations)
	}

	if len(locations) == 0 {
		fmt.Println("no references found")
		return nil
	}
	for _, loc := range pathutil.ToRelativeLocations(locations, cfg.Project.Root) {
		fmt.Printf("%s:%d-%d\n", loc.Path, loc.Range.Begin, loc.Range.End)
	}
	return nil
}

func contextsCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("usage: hctxindex contexts <header>")
	}

	header := c.Args().Get(0)
	if !filepath.IsAbs(header) {
		abs, err := filepath.Abs(header)
		if err != nil {
			return fmt.Errorf("failed to resolve %q: %w", header, err)
		}
		header = abs
	}

	eng, cfg, err := newEngine(c)
	if err != nil {
		return err
	}
	eng.IndexAll()
	eng.Wait()
	if err := eng.Close(); err != nil {
		return err
	}

	contexts := eng.ContextsOf(header)

	if c.Bool("json") {
		return json.NewEncoder(os.Stdout).Encode(contexts)
	}

	if len(contexts) == 0 {
		fmt.Println("no header contexts recorded")
		return nil
	}
	fmt.Printf("%s:\n", pathutil.ToRelative(header, cfg.Project.Root))
	for _, ctx := range contexts {
		fmt.Printf("  include=%d hctx=%d cctx=%d\n", ctx.Include, ctx.HctxID, ctx.CctxID)
	}
	return nil
}
