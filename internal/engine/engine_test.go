package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/standardbeagle/hctxindex/internal/ast"
	"github.com/standardbeagle/hctxindex/internal/compiledb"
	"github.com/standardbeagle/hctxindex/internal/config"
	"github.com/standardbeagle/hctxindex/internal/idx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	tus map[string]*ast.TranslationUnitAST
}

func (f *fakeProvider) Parse(mainFile string, argv []string, interest ast.InterestFilter) (*ast.TranslationUnitAST, error) {
	tu, ok := f.tus[mainFile]
	if !ok {
		return &ast.TranslationUnitAST{MainFile: mainFile}, nil
	}
	return tu, nil
}

func writeCompileDB(t *testing.T, dir string, files ...string) {
	t.Helper()
	var entries []compiledb.Entry
	for _, f := range files {
		entries = append(entries, compiledb.Entry{
			Directory: dir,
			File:      f,
			Arguments: []string{"clang++", f},
		})
	}
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "compile_commands.json"), data, 0o644))
}

func simpleDecl(file, canonical, name string, kind ast.DeclKind, begin, end uint32) ast.Decl {
	rng := idx.Range{Begin: begin, End: end}
	return ast.Decl{
		CanonicalText:  canonical,
		File:           file,
		Name:           name,
		Kind:           kind,
		Range:          rng,
		SpellingRange:  rng,
		HasSpellingLoc: true,
		ExpansionRange: rng,
		RangeLocKind:   ast.LocFile,
	}
}

func TestEngine_IndexAllBuildsBlobAndAllowsLookup(t *testing.T) {
	dir := t.TempDir()
	mainFile := filepath.Join(dir, "main.cpp")
	writeCompileDB(t, dir, mainFile)

	tu := &ast.TranslationUnitAST{
		MainFile: mainFile,
		Occasions: []ast.Occasion{
			{
				Subject: simpleDecl(mainFile, "c:@F@foo#", "foo", ast.DeclFunction, 10, 13),
				Kind:    idx.RelationDefinition,
			},
		},
		TouchedFiles: []string{mainFile},
	}

	cfg := config.Default(dir)
	require.NoError(t, config.ValidateConfig(cfg))

	e, err := New(cfg, &fakeProvider{tus: map[string]*ast.TranslationUnitAST{mainFile: tu}})
	require.NoError(t, err)

	e.Add(mainFile)
	e.Wait()

	locs, err := e.Lookup(mainFile, 11, idx.RelationDefinition)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, mainFile, locs[0].Path)
}

func TestEngine_RemoveDropsHeaderContext(t *testing.T) {
	dir := t.TempDir()
	mainFile := filepath.Join(dir, "main.cpp")
	header := filepath.Join(dir, "a.h")
	writeCompileDB(t, dir, mainFile)

	tu := &ast.TranslationUnitAST{
		MainFile: mainFile,
		Occasions: []ast.Occasion{
			{Subject: simpleDecl(header, "c:@x", "x", ast.DeclVariable, 0, 3), Kind: idx.RelationDefinition},
		},
		Includes: []ast.IncludeEdge{
			{FromFile: mainFile, ToFile: header, Line: 1, ParentIndex: -1},
		},
		TouchedFiles: []string{mainFile, header},
	}

	cfg := config.Default(dir)
	require.NoError(t, config.ValidateConfig(cfg))

	e, err := New(cfg, &fakeProvider{tus: map[string]*ast.TranslationUnitAST{mainFile: tu}})
	require.NoError(t, err)

	e.Add(mainFile)
	e.Wait()

	assert.NotEmpty(t, e.ContextsOf(header))

	e.Remove(mainFile)
	assert.Empty(t, e.ContextsOf(header))
}

func TestEngine_AddUnknownFileIsNoOp(t *testing.T) {
	dir := t.TempDir()
	writeCompileDB(t, dir)

	cfg := config.Default(dir)
	require.NoError(t, config.ValidateConfig(cfg))

	e, err := New(cfg, &fakeProvider{tus: map[string]*ast.TranslationUnitAST{}})
	require.NoError(t, err)

	e.Add(filepath.Join(dir, "missing.cpp"))
	e.Wait()
}

func TestEngine_CloseThenReloadPreservesLookup(t *testing.T) {
	dir := t.TempDir()
	mainFile := filepath.Join(dir, "main.cpp")
	writeCompileDB(t, dir, mainFile)

	tu := &ast.TranslationUnitAST{
		MainFile: mainFile,
		Occasions: []ast.Occasion{
			{
				Subject: simpleDecl(mainFile, "c:@F@foo#", "foo", ast.DeclFunction, 10, 13),
				Kind:    idx.RelationDefinition,
			},
		},
		TouchedFiles: []string{mainFile},
	}

	cfg := config.Default(dir)
	require.NoError(t, config.ValidateConfig(cfg))

	e, err := New(cfg, &fakeProvider{tus: map[string]*ast.TranslationUnitAST{mainFile: tu}})
	require.NoError(t, err)
	e.Add(mainFile)
	e.Wait()
	require.NoError(t, e.Close())

	// A fresh Engine backed by the same project root and an empty
	// provider (nothing left to parse) must still resolve the lookup
	// purely from the persisted registry snapshot and on-disk blob.
	reloaded, err := New(cfg, &fakeProvider{tus: map[string]*ast.TranslationUnitAST{}})
	require.NoError(t, err)

	locs, err := reloaded.Lookup(mainFile, 11, idx.RelationDefinition)
	require.NoError(t, err)
	require.Len(t, locs, 1)
	assert.Equal(t, mainFile, locs[0].Path)
}

func TestEngine_HierarchyWrappersDelegateToLookup(t *testing.T) {
	dir := t.TempDir()
	mainFile := filepath.Join(dir, "main.cpp")
	writeCompileDB(t, dir, mainFile)

	caller := simpleDecl(mainFile, "c:@F@caller#", "caller", ast.DeclFunction, 0, 6)
	callee := simpleDecl(mainFile, "c:@F@callee#", "callee", ast.DeclFunction, 20, 26)
	tu := &ast.TranslationUnitAST{
		MainFile: mainFile,
		Occasions: []ast.Occasion{
			{Subject: caller, Kind: idx.RelationDefinition},
			{Subject: callee, Kind: idx.RelationDefinition},
		},
		CallSites: []ast.CallSite{
			{Caller: caller, Callee: callee, Range: idx.Range{Begin: 30, End: 36}},
		},
		TouchedFiles: []string{mainFile},
	}

	cfg := config.Default(dir)
	require.NoError(t, config.ValidateConfig(cfg))

	e, err := New(cfg, &fakeProvider{tus: map[string]*ast.TranslationUnitAST{mainFile: tu}})
	require.NoError(t, err)
	e.Add(mainFile)
	e.Wait()

	incoming, err := e.IncomingCalls(mainFile, 22)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, idx.Range{Begin: 30, End: 36}, incoming[0].Range)

	outgoing, err := e.OutgoingCalls(mainFile, 2)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, idx.Range{Begin: 30, End: 36}, outgoing[0].Range)

	prepared, err := e.HierarchyPrepare(mainFile, 2)
	require.NoError(t, err)
	require.Len(t, prepared, 1)
}

func TestEngine_LookupUnknownFileErrors(t *testing.T) {
	dir := t.TempDir()
	writeCompileDB(t, dir)

	cfg := config.Default(dir)
	require.NoError(t, config.ValidateConfig(cfg))

	e, err := New(cfg, &fakeProvider{tus: map[string]*ast.TranslationUnitAST{}})
	require.NoError(t, err)

	_, err = e.Lookup(filepath.Join(dir, "nope.cpp"), 0, idx.AllRelationKinds)
	assert.Error(t, err)
}
