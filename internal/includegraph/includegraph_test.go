package includegraph

import (
	"os"
	"testing"
	"time"

	"github.com/standardbeagle/hctxindex/internal/ast"
	hcxerrors "github.com/standardbeagle/hctxindex/internal/errors"
	"github.com/standardbeagle/hctxindex/internal/idx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddIncludeChain_BuildsLocationsAndHeaderSet(t *testing.T) {
	r := New()
	edges := []ast.IncludeEdge{
		{FromFile: "main.cpp", ToFile: "a.h", Line: 1, ParentIndex: -1},
		{FromFile: "a.h", ToFile: "b.h", Line: 3, ParentIndex: 0},
	}

	tu := r.AddIncludeChain("main.cpp", edges, time.Unix(100, 0))
	require.Len(t, tu.Locations, 2)
	assert.Equal(t, noParent, tu.Locations[0].Include)
	assert.Equal(t, 0, tu.Locations[1].Include)
	assert.Contains(t, tu.Headers, "a.h")
	assert.Contains(t, tu.Headers, "b.h")

	require.Contains(t, r.Headers, "a.h")
	require.Contains(t, r.Headers, "b.h")
	assert.Equal(t, "main.cpp", r.Headers["a.h"].ActiveTU)
}

func TestAddIncludeChain_SkipsGuardedAndExcluded(t *testing.T) {
	r := New()
	r.Exclude = []string{"**/generated/**"}
	edges := []ast.IncludeEdge{
		{FromFile: "main.cpp", ToFile: "guard.h", Line: 1, ParentIndex: -1, GuardedAgainstReparse: true},
		{FromFile: "main.cpp", ToFile: "generated/x.h", Line: 2, ParentIndex: -1},
		{FromFile: "main.cpp", ToFile: "a.h", Line: 3, ParentIndex: -1},
	}

	tu := r.AddIncludeChain("main.cpp", edges, time.Now())
	require.Len(t, tu.Locations, 1)
	assert.Equal(t, "a.h", r.Paths.Path(tu.Locations[0].Filename))
}

func TestNeedsIndex(t *testing.T) {
	r := New()
	assert.True(t, r.NeedsIndex("main.cpp", time.Now()), "unknown TU always needs indexing")

	r.AddIncludeChain("main.cpp", nil, time.Unix(100, 0))
	assert.False(t, r.NeedsIndex("main.cpp", time.Unix(50, 0)), "older source mtime is not stale")
	assert.True(t, r.NeedsIndex("main.cpp", time.Unix(200, 0)), "newer source mtime is stale")
}

func TestRemoveTU_OrphansHeaderWithNoOtherTU(t *testing.T) {
	r := New()
	edges := []ast.IncludeEdge{{FromFile: "main.cpp", ToFile: "a.h", Line: 1, ParentIndex: -1}}
	r.AddIncludeChain("main.cpp", edges, time.Now())

	orphans := r.RemoveTU("main.cpp")
	assert.Equal(t, []string{"a.h"}, orphans)
	_, ok := r.Headers["a.h"]
	assert.False(t, ok)
}

func TestRemoveTU_SharedHeaderNotOrphaned(t *testing.T) {
	r := New()
	edges := []ast.IncludeEdge{{FromFile: "main.cpp", ToFile: "a.h", Line: 1, ParentIndex: -1}}
	r.AddIncludeChain("main.cpp", edges, time.Now())
	r.AddIncludeChain("other.cpp", edges, time.Now())

	orphans := r.RemoveTU("main.cpp")
	assert.Empty(t, orphans)
	_, ok := r.Headers["a.h"]
	assert.True(t, ok)
}

func TestResolveChain(t *testing.T) {
	r := New()
	edges := []ast.IncludeEdge{
		{FromFile: "main.cpp", ToFile: "a.h", Line: 1, ParentIndex: -1},
		{FromFile: "a.h", ToFile: "b.h", Line: 3, ParentIndex: 0},
	}
	tu := r.AddIncludeChain("main.cpp", edges, time.Now())

	chain := tu.ResolveChain(1)
	require.Len(t, chain, 2)
	assert.Equal(t, uint32(1), chain[0].Line)
	assert.Equal(t, uint32(3), chain[1].Line)
}

// TestSaveLoad_RoundTrip is scenario 5 from spec §8: serialize the
// registry, drop every in-memory structure, reload from disk, and check
// every TU record, Header record, and context cross-reference survived.
func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	r := New()
	edges := []ast.IncludeEdge{
		{FromFile: "main.cpp", ToFile: "a.h", Line: 1, ParentIndex: -1},
		{FromFile: "a.h", ToFile: "b.h", Line: 3, ParentIndex: 0},
	}
	tu := r.AddIncludeChain("main.cpp", edges, time.Unix(100, 0))
	tu.IndexPath = "/idx/main.cpp.100000001.sidx"
	r.RecordIndexFile("a.h", "main.cpp", IndexFile{Path: "/idx/a.h.100000001.sidx", Hash: idx.ContentHash{Lo: 11, Hi: 22}})
	r.RecordIndexFile("b.h", "main.cpp", IndexFile{Path: "/idx/b.h.100000001.sidx", Hash: idx.ContentHash{Lo: 33, Hi: 44}})

	require.NoError(t, r.Save(dir))
	require.FileExists(t, dir+"/index.json")

	r = nil // drop every in-memory structure before reloading

	reloaded, err := Load(dir)
	require.NoError(t, err)

	require.Contains(t, reloaded.TUs, "main.cpp")
	assert.Equal(t, "/idx/main.cpp.100000001.sidx", reloaded.TUs["main.cpp"].IndexPath)
	require.Len(t, reloaded.TUs["main.cpp"].Locations, 2)
	assert.Equal(t, time.Unix(100, 0).Unix(), reloaded.TUs["main.cpp"].Mtime.Unix())

	require.Contains(t, reloaded.Headers, "a.h")
	require.Len(t, reloaded.Headers["a.h"].Indices, 1)
	assert.Equal(t, idx.ContentHash{Lo: 11, Hi: 22}, reloaded.Headers["a.h"].Indices[0].Hash)
	assert.Equal(t, "main.cpp", reloaded.Headers["a.h"].ActiveTU)

	require.Contains(t, reloaded.Headers, "b.h")
	require.Len(t, reloaded.Headers["b.h"].Indices, 1)
	assert.Equal(t, idx.ContentHash{Lo: 33, Hi: 44}, reloaded.Headers["b.h"].Indices[0].Hash)

	assert.Equal(t, "a.h", reloaded.Paths.Path(reloaded.TUs["main.cpp"].Locations[0].Filename))
	assert.Equal(t, "b.h", reloaded.Paths.Path(reloaded.TUs["main.cpp"].Locations[1].Filename))
}

func TestLoad_MissingSnapshotReturnsEmptyRegistry(t *testing.T) {
	reloaded, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, reloaded.Headers)
	assert.Empty(t, reloaded.TUs)
}

func TestLoad_CorruptSnapshotReturnsRegistryCorruptError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/index.json", []byte("{not valid json"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	var indexingErr *hcxerrors.IndexingError
	require.ErrorAs(t, err, &indexingErr)
	assert.Equal(t, hcxerrors.RegistryCorrupt, indexingErr.Type)
}
