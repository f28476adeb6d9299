package mcpserver

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/hctxindex/internal/ast"
	"github.com/standardbeagle/hctxindex/internal/compiledb"
	"github.com/standardbeagle/hctxindex/internal/config"
	"github.com/standardbeagle/hctxindex/internal/engine"
	"github.com/standardbeagle/hctxindex/internal/idx"
)

type fakeProvider struct {
	tus map[string]*ast.TranslationUnitAST
}

func (p *fakeProvider) Parse(mainFile string, argv []string, interest ast.InterestFilter) (*ast.TranslationUnitAST, error) {
	return p.tus[mainFile], nil
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

func writeCompileDB(t *testing.T, dir string, files ...string) {
	t.Helper()
	entries := make([]compiledb.Entry, 0, len(files))
	for _, f := range files {
		entries = append(entries, compiledb.Entry{Directory: dir, File: f, Arguments: []string{"cc", "-c", f}})
	}
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "compile_commands.json"), data, 0o644))
}

func newTestServer(t *testing.T, tus map[string]*ast.TranslationUnitAST) *Server {
	t.Helper()
	dir := t.TempDir()

	files := make([]string, 0, len(tus))
	for f := range tus {
		files = append(files, f)
	}
	writeCompileDB(t, dir, files...)

	cfg := config.Default(dir)
	eng, err := engine.New(cfg, &fakeProvider{tus: tus})
	require.NoError(t, err)

	return NewServer(eng)
}

func TestServer_InfoListsTools(t *testing.T) {
	s := newTestServer(t, nil)

	out, err := s.CallTool("info", nil)
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.NotEmpty(t, resp["tools"])
	assert.NotEmpty(t, resp["relation_kinds"])
}

func TestServer_IndexAllThenLookup(t *testing.T) {
	mainFile := "/project/main.cpp"
	tus := map[string]*ast.TranslationUnitAST{
		mainFile: {
			MainFile: mainFile,
			Occasions: []ast.Occasion{{
				Subject: simpleDecl(mainFile, "cxx:widget", "widget", ast.DeclFunction, 10, 16),
				Kind:    idx.RelationDefinition,
			}},
		},
	}
	s := newTestServer(t, tus)

	_, err := s.CallTool("index_all", nil)
	require.NoError(t, err)

	out, err := s.CallTool("lookup", map[string]interface{}{
		"file":   mainFile,
		"offset": 11,
	})
	require.NoError(t, err)

	var resp LookupResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Locations, 1)
	assert.Equal(t, mainFile, resp.Locations[0].Path)
}

func TestServer_IndexAddRemoveAndHeaderContexts(t *testing.T) {
	mainFile := "/project/main.cpp"
	header := "/project/a.h"
	tus := map[string]*ast.TranslationUnitAST{
		mainFile: {
			MainFile: mainFile,
			Includes: []ast.IncludeEdge{{FromFile: mainFile, ToFile: header, Line: 1, ParentIndex: -1}},
			Occasions: []ast.Occasion{{
				Subject: simpleDecl(header, "cxx:helper", "helper", ast.DeclFunction, 0, 6),
				Kind:    idx.RelationDeclaration,
			}},
		},
	}
	s := newTestServer(t, tus)

	_, err := s.CallTool("index_add", map[string]interface{}{"file": mainFile})
	require.NoError(t, err)
	s.eng.Wait()

	out, err := s.CallTool("header_contexts", map[string]interface{}{"path": header})
	require.NoError(t, err)

	var resp HeaderContextsResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.NotEmpty(t, resp.Contexts)

	_, err = s.CallTool("index_remove", map[string]interface{}{"file": mainFile})
	require.NoError(t, err)

	out, err = s.CallTool("header_contexts", map[string]interface{}{"path": header})
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Empty(t, resp.Contexts)
}

func TestServer_LookupMissingFileReturnsToolError(t *testing.T) {
	s := newTestServer(t, nil)

	out, err := s.CallTool("lookup", map[string]interface{}{"file": "", "offset": 0})
	require.NoError(t, err)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, false, resp["success"])
}
