// Package includegraph implements the spec's component D: the translation
// unit registry and #include graph that tracks which headers a TU pulled
// in, which TUs reach a given header, and whether a TU's on-disk index is
// stale relative to its source (spec §3 "TranslationUnit", "Header record",
// §4.D "Include Graph & TU Registry").
//
// Grounded on original_source/include/Server/IncludeGraph.h's
// TranslationUnit/Header/IncludeLocation shapes, translated from clang's
// FileID-keyed structures to plain path strings plus a string-interning
// pool (spec §4.D "A map between source file path and its header
// contexts"), and on the teacher's internal/indexing/watcher.go and
// internal/indexing/pipeline_types.go for glob-based include/exclude
// filtering and mtime-driven staleness checks.
package includegraph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/standardbeagle/hctxindex/internal/ast"
	"github.com/standardbeagle/hctxindex/internal/debug"
	hcxerrors "github.com/standardbeagle/hctxindex/internal/errors"
	"github.com/standardbeagle/hctxindex/internal/idx"
)

// PathPool interns file paths once so repeated header references don't
// repeat whole strings (spec §4.D note on the original's string pool).
type PathPool struct {
	paths []string
	index map[string]uint32
}

// NewPathPool returns an empty pool.
func NewPathPool() *PathPool {
	return &PathPool{index: make(map[string]uint32)}
}

// Intern returns path's id, assigning a new one if this is the first time
// path is seen.
func (p *PathPool) Intern(path string) uint32 {
	if id, ok := p.index[path]; ok {
		return id
	}
	id := uint32(len(p.paths))
	p.paths = append(p.paths, path)
	p.index[path] = id
	return id
}

// Path returns the path interned under id.
func (p *PathPool) Path(id uint32) string {
	if int(id) >= len(p.paths) {
		return ""
	}
	return p.paths[id]
}

// MarshalJSON encodes the pool as its append-only path list; ids are
// positions in that list, so the index map doesn't need its own entry
// (spec §5 "the path pool... is append-only; existing u32 refs never
// invalidate").
func (p *PathPool) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.paths)
}

// UnmarshalJSON restores a pool from its path list, rebuilding the index
// map so ids assigned before a Save/Load round trip keep resolving to the
// same path.
func (p *PathPool) UnmarshalJSON(data []byte) error {
	var paths []string
	if err := json.Unmarshal(data, &paths); err != nil {
		return err
	}
	p.paths = paths
	p.index = make(map[string]uint32, len(paths))
	for i, path := range paths {
		p.index[path] = uint32(i)
	}
	return nil
}

// IncludeLocation is one #include directive recorded against a
// translation unit: the line it occurs on, the index of the including
// file's own entry in the same TU's Locations (or noParent), and the
// interned path id of the included header.
type IncludeLocation struct {
	Line     uint32
	Include  int // index into the owning TU's Locations, or noParent
	Filename uint32
}

// noParent marks the TU's main file: it has no including entry of its own.
const noParent = -1

// IndexFile names one persisted on-disk index blob for a header and the
// content hash it was built from, so callers can tell two on-disk files
// apart without re-reading them (spec §3 "Header record").
type IndexFile struct {
	Path string
	Hash idx.ContentHash
}

// HeaderContextRef names which of a Header's on-disk IndexFile entries a
// given translation unit's parse resolved to, and the #include that
// reached it.
type HeaderContextRef struct {
	Include int // index into the owning TU's Locations
	Index   int // index into Header.Indices, or -1 if not yet persisted
}

// Header is the registry's record for one header path: every translation
// unit that has ever included it, the on-disk index files it has
// accumulated, and which context is considered "active" for presenting a
// single canonical view of the header (spec §4.D, resolving Open Question
// "active header context" per SPEC_FULL.md).
type Header struct {
	SrcPath string

	Indices []IndexFile

	// Contexts maps an owning TU's source path to every HeaderContextRef
	// that TU has produced for this header.
	Contexts map[string][]HeaderContextRef

	// ActiveTU/ActiveContext name the header context "active" whenever
	// nothing else discriminates (this module always picks context 0 for
	// the first TU that registered one; see SPEC_FULL.md Open Questions).
	ActiveTU      string
	ActiveContext int
}

// TranslationUnit is the registry's record for one compiled main file: its
// own on-disk index path, every header it reached, the include locations
// that reached them, and the mtime used to decide staleness.
type TranslationUnit struct {
	SrcPath   string
	IndexPath string

	// Headers is the set of header paths this TU has included, directly
	// or transitively.
	Headers map[string]struct{}

	Mtime time.Time

	Locations []IncludeLocation

	Version uint32
}

// Registry is the top-level store of every known TU and header, plus the
// interned path pool they share.
type Registry struct {
	Headers map[string]*Header
	TUs     map[string]*TranslationUnit
	Paths   *PathPool

	// Include/Exclude are doublestar glob patterns restricting which
	// files participate in indexing and orphan GC (spec §4.D "the
	// registry respects the same include/exclude patterns as the
	// watcher"). Grounded on the teacher's FileScanner pattern fields.
	Include []string
	Exclude []string
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		Headers: make(map[string]*Header),
		TUs:     make(map[string]*TranslationUnit),
		Paths:   NewPathPool(),
	}
}

// snapshotName is the registry file's name within a project's index
// directory (spec §6 "<dir>/index.json").
const snapshotName = "index.json"

// Save writes a complete snapshot of the registry — every TU record,
// Header record, and context cross-reference — to <dir>/index.json, so a
// later Load reconstructs the same state without re-parsing anything
// (spec §4.D "Persistence"). The write lands through a temp file plus
// rename so a reader never observes a half-written snapshot (spec §5
// "append-once... then the registry pointer is swapped").
func (r *Registry) Save(dir string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	path := filepath.Join(dir, snapshotName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return hcxerrors.IoErrorFor(tmp, "save_registry", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return hcxerrors.IoErrorFor(path, "save_registry", err)
	}
	return nil
}

// Load reads <dir>/index.json and returns the Registry it describes. A
// project with no snapshot yet (fresh checkout, first run) gets an empty
// Registry rather than an error. A snapshot that fails to parse is
// reported as errors.RegistryCorruptError (spec §7 "RegistryCorrupt:
// index.json failed to parse at startup") — the caller decides whether to
// fall back to an empty Registry and re-index from scratch.
func Load(dir string) (*Registry, error) {
	path := filepath.Join(dir, snapshotName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, hcxerrors.IoErrorFor(path, "load_registry", err)
	}

	r := New()
	if err := json.Unmarshal(data, r); err != nil {
		return nil, hcxerrors.RegistryCorruptError(path, err)
	}
	if r.Headers == nil {
		r.Headers = make(map[string]*Header)
	}
	if r.TUs == nil {
		r.TUs = make(map[string]*TranslationUnit)
	}
	if r.Paths == nil {
		r.Paths = NewPathPool()
	}
	return r, nil
}

// Accepts reports whether path should participate in indexing: excluded
// unconditionally if any Exclude pattern matches, otherwise included if
// there are no Include patterns or any one matches (teacher's
// shouldExcludeFast/shouldIncludeFast precedence in
// internal/indexing/pipeline_types.go).
func (r *Registry) Accepts(path string) bool {
	for _, pattern := range r.Exclude {
		if matched, err := doublestar.Match(pattern, path); err == nil && matched {
			return false
		}
	}
	if len(r.Include) == 0 {
		return true
	}
	for _, pattern := range r.Include {
		if matched, err := doublestar.Match(pattern, path); err == nil && matched {
			return true
		}
	}
	return false
}

// NeedsIndex reports whether tu must be re-parsed: unknown files always
// need indexing, known ones only if their source mtime is newer than the
// mtime recorded at last index (spec §4.D "needs_index").
func (r *Registry) NeedsIndex(srcPath string, sourceMtime time.Time) bool {
	tu, ok := r.TUs[srcPath]
	if !ok {
		return true
	}
	return sourceMtime.After(tu.Mtime)
}

// getOrCreateTU returns the TU record for srcPath, creating an empty one
// if absent.
func (r *Registry) getOrCreateTU(srcPath string) *TranslationUnit {
	if tu, ok := r.TUs[srcPath]; ok {
		return tu
	}
	tu := &TranslationUnit{SrcPath: srcPath, Headers: make(map[string]struct{})}
	r.TUs[srcPath] = tu
	return tu
}

// getOrCreateHeader returns the Header record for path, creating an empty
// one if absent.
func (r *Registry) getOrCreateHeader(path string) *Header {
	if h, ok := r.Headers[path]; ok {
		return h
	}
	h := &Header{SrcPath: path, Contexts: make(map[string][]HeaderContextRef), ActiveContext: -1}
	r.Headers[path] = h
	return h
}

// AddIncludeChain rebuilds tu's include-location list and header set from
// a compiled TU's reported #include edges (spec §4.D "add_include_chain"),
// skipping any edge to a file this registry's patterns exclude and any
// edge marked GuardedAgainstReparse (spec: "such files are not treated as
// new header contexts").
func (r *Registry) AddIncludeChain(tuPath string, edges []ast.IncludeEdge, mtime time.Time) *TranslationUnit {
	tu := r.getOrCreateTU(tuPath)
	tu.Mtime = mtime
	tu.Version++
	tu.Locations = tu.Locations[:0]
	tu.Headers = make(map[string]struct{})

	// edgeToLocation maps an edge's own index in `edges` to the index of
	// the IncludeLocation it produced in tu.Locations, so a later edge can
	// look up its parent's location index (mirrors the original's
	// FileID->index DenseMap built while walking the SourceManager).
	edgeToLocation := make(map[int]int, len(edges))

	for i, edge := range edges {
		if edge.GuardedAgainstReparse {
			continue
		}
		if !r.Accepts(edge.ToFile) {
			debug.LogHeaderIndex("skipping excluded include %q from %q", edge.ToFile, edge.FromFile)
			continue
		}

		parent := noParent
		if edge.ParentIndex >= 0 {
			if loc, ok := edgeToLocation[edge.ParentIndex]; ok {
				parent = loc
			}
		}

		loc := IncludeLocation{
			Line:     edge.Line,
			Include:  parent,
			Filename: r.Paths.Intern(edge.ToFile),
		}
		edgeToLocation[i] = len(tu.Locations)
		tu.Locations = append(tu.Locations, loc)
		tu.Headers[edge.ToFile] = struct{}{}

		header := r.getOrCreateHeader(edge.ToFile)
		ref := HeaderContextRef{Include: edgeToLocation[i], Index: -1}
		header.Contexts[tuPath] = append(header.Contexts[tuPath], ref)
		if header.ActiveTU == "" {
			header.ActiveTU = tuPath
			header.ActiveContext = len(header.Contexts[tuPath]) - 1
		}
	}

	return tu
}

// RecordIndexFile attaches a persisted on-disk index to header, called
// back into the HeaderContextRef most recently added for tuPath so lookups
// can find the right blob without re-merging.
func (r *Registry) RecordIndexFile(headerPath, tuPath string, file IndexFile) {
	header, ok := r.Headers[headerPath]
	if !ok {
		return
	}
	header.Indices = append(header.Indices, file)
	refs := header.Contexts[tuPath]
	if len(refs) == 0 {
		return
	}
	refs[len(refs)-1].Index = len(header.Indices) - 1
}

// RemoveTU drops tu and every header-context entry it contributed. Headers
// left with no remaining contexts for any TU become orphans, reported back
// to the caller so a GC pass can delete their on-disk index files (spec
// §4.D "orphan header GC").
func (r *Registry) RemoveTU(srcPath string) (orphans []string) {
	tu, ok := r.TUs[srcPath]
	if !ok {
		return nil
	}
	delete(r.TUs, srcPath)

	for headerPath := range tu.Headers {
		header, ok := r.Headers[headerPath]
		if !ok {
			continue
		}
		delete(header.Contexts, srcPath)
		if header.ActiveTU == srcPath {
			header.ActiveTU = ""
			header.ActiveContext = -1
		}
		if len(header.Contexts) == 0 {
			orphans = append(orphans, headerPath)
			delete(r.Headers, headerPath)
		}
	}
	return orphans
}

// ResolveChain returns the #include chain leading to loc, from the TU's
// main file down to loc itself (spec §4.D "contextResolve").
func (tu *TranslationUnit) ResolveChain(locIndex int) []IncludeLocation {
	var chain []IncludeLocation
	for locIndex != noParent && locIndex >= 0 && locIndex < len(tu.Locations) {
		loc := tu.Locations[locIndex]
		chain = append([]IncludeLocation{loc}, chain...)
		locIndex = loc.Include
	}
	return chain
}
