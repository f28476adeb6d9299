// Package lookup implements the spec's component F: resolving a
// (file, byte offset) cursor position into the symbol occupying it and
// streaming every other index blob known to the registry for its
// relations (spec §4.F "Lookup Engine").
//
// Grounded on original_source's lookup/find-references entry points (the
// file→index resolution, lower-bound occurrence scan, and streamed
// cross-blob relation walk spec §4.F describes) and on the teacher's
// internal/core/symbol_location_index.go for the general shape of a
// position-keyed symbol index, adapted from a line/column model to this
// module's pure byte-offset one (spec §3 "the core stays in UTF-8 byte
// offsets").
package lookup

import (
	"fmt"
	"os"
	"sort"

	"github.com/standardbeagle/hctxindex/internal/blob"
	"github.com/standardbeagle/hctxindex/internal/debug"
	"github.com/standardbeagle/hctxindex/internal/idx"
	"github.com/standardbeagle/hctxindex/internal/includegraph"
)

// Location is one result of a lookup: a file path and the byte range
// within it.
type Location struct {
	Path  string
	Range idx.Range
}

// BlobOpener reads the raw bytes of an on-disk index blob. Tests supply
// an in-memory implementation; Engine's default reads through os.ReadFile
// — plain file I/O has no idiomatic replacement among this module's
// dependencies, so it stays stdlib (spec §4.F step 3's "open it lazily"
// is about deferring *which* blobs get opened, not about the read
// syscall itself).
type BlobOpener func(path string) ([]byte, error)

// Engine answers lookup queries against a Registry's known translation
// units and headers.
type Engine struct {
	registry *includegraph.Registry
	open     BlobOpener
}

// New returns an Engine backed by registry, reading blobs from disk.
func New(registry *includegraph.Registry) *Engine {
	return &Engine{registry: registry, open: readFile}
}

// NewWithOpener returns an Engine that reads blobs through open instead
// of the filesystem, for tests and in-memory registries.
func NewWithOpener(registry *includegraph.Registry, open BlobOpener) *Engine {
	return &Engine{registry: registry, open: open}
}

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Lookup resolves the symbol occupying offset within file, then streams
// every index blob the registry knows about for relations matching mask,
// returning every (path, range) match deduplicated and sorted (spec §4.F
// steps 1-4). A nil, nil result means offset didn't resolve to any
// symbol; it is not an error.
func (e *Engine) Lookup(file string, offset uint32, mask idx.RelationKind) ([]Location, error) {
	anchors, err := e.anchorBlobPaths(file)
	if err != nil {
		return nil, err
	}

	var (
		anchorID   idx.SymbolID
		anchorName string
		found      bool
	)
	for _, path := range anchors {
		data, err := e.open(path)
		if err != nil {
			return nil, fmt.Errorf("lookup: opening anchor blob %q: %w", path, err)
		}
		r, err := blob.Open(data)
		if err != nil {
			return nil, fmt.Errorf("lookup: parsing anchor blob %q: %w", path, err)
		}
		occs, _, ok, err := r.OccurrencesCovering(offset)
		if err != nil {
			return nil, err
		}
		if !ok || len(occs) == 0 {
			continue
		}
		anchorID = occs[0].Target
		if sv, ok := r.FindSymbol(anchorID); ok {
			anchorName = sv.Name()
		}
		found = true
		break
	}
	if !found {
		return nil, nil
	}

	// Results name the source file a blob was built from, not the blob.
	srcOf := make(map[string]string)
	for _, tu := range e.registry.TUs {
		srcOf[tu.IndexPath] = tu.SrcPath
	}
	for _, h := range e.registry.Headers {
		for _, f := range h.Indices {
			srcOf[f.Path] = h.SrcPath
		}
	}

	var results []Location
	for _, path := range e.allBlobPaths() {
		data, err := e.open(path)
		if err != nil {
			debug.LogLookup("lookup: skipping unreadable blob %q: %v", path, err)
			continue
		}
		r, err := blob.Open(data)
		if err != nil {
			debug.LogLookup("lookup: skipping unparseable blob %q: %v", path, err)
			continue
		}

		sv, ok := r.FindSymbol(anchorID)
		if !ok {
			continue
		}
		if anchorName != "" && !sameSymbolName(anchorName, sv.Name()) {
			continue // SymbolID collision with an unrelated declaration
		}

		rels, err := sv.Relations()
		if err != nil {
			return nil, err
		}
		for _, rel := range rels {
			if !mask.Has(rel.Kind) {
				continue
			}
			results = append(results, Location{Path: srcOf[path], Range: rel.Range})
		}
	}

	return dedupSort(results), nil
}

// anchorBlobPaths resolves file to the index blob(s) to search for the
// anchor occurrence (spec §4.F step 1: "either a TU's index_path or a
// Header's set of HeaderIndex slots"). A header resolves to its
// currently-active context only — scanning every stale context a header
// has ever produced would surface occurrences from parses the active
// edit session no longer reflects.
func (e *Engine) anchorBlobPaths(file string) ([]string, error) {
	if tu, ok := e.registry.TUs[file]; ok {
		if tu.IndexPath == "" {
			return nil, fmt.Errorf("lookup: %q has no persisted index yet", file)
		}
		return []string{tu.IndexPath}, nil
	}

	if h, ok := e.registry.Headers[file]; ok {
		if h.ActiveTU == "" || h.ActiveContext < 0 {
			return nil, fmt.Errorf("lookup: %q has no active header context", file)
		}
		refs := h.Contexts[h.ActiveTU]
		if h.ActiveContext >= len(refs) {
			return nil, fmt.Errorf("lookup: %q active context is out of range", file)
		}
		ref := refs[h.ActiveContext]
		if ref.Index < 0 || ref.Index >= len(h.Indices) {
			return nil, fmt.Errorf("lookup: %q active context has no persisted index yet", file)
		}
		return []string{h.Indices[ref.Index].Path}, nil
	}

	return nil, fmt.Errorf("lookup: %q is not a known translation unit or header", file)
}

// allBlobPaths returns every distinct on-disk index path the registry
// knows about: one per translation unit plus every header context blob
// (spec §4.F step 3: "For every other index blob known to the
// registry").
func (e *Engine) allBlobPaths() []string {
	seen := make(map[string]struct{})
	var paths []string

	add := func(path string) {
		if path == "" {
			return
		}
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		paths = append(paths, path)
	}

	for _, tu := range e.registry.TUs {
		add(tu.IndexPath)
	}
	for _, h := range e.registry.Headers {
		for _, f := range h.Indices {
			add(f.Path)
		}
	}

	sort.Strings(paths)
	return paths
}

// dedupSort sorts results by (Path, Range) and removes exact duplicates,
// satisfying spec §4.F step 4.
func dedupSort(locs []Location) []Location {
	if len(locs) == 0 {
		return nil
	}
	sort.Slice(locs, func(i, j int) bool {
		a, b := locs[i], locs[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Range.Less(b.Range)
	})

	out := locs[:1]
	for _, loc := range locs[1:] {
		last := out[len(out)-1]
		if loc.Path == last.Path && loc.Range == last.Range {
			continue
		}
		out = append(out, loc)
	}
	return out
}
