// Package engine is the composition root: it wires the compilation
// database, AST front-end, raw-index builder, header-index merger,
// include graph, blob serializer, scheduler, and lookup engine into the
// add/remove/index_all/lookup surface spec §4 names as the system's
// public operations.
//
// Grounded on original_source/include/Server/Indexer2.h's Indexer2
// class, which plays exactly this role in the original: the single
// object a language-server frontend calls add/remove/lookup against.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/standardbeagle/hctxindex/internal/ast"
	"github.com/standardbeagle/hctxindex/internal/blob"
	"github.com/standardbeagle/hctxindex/internal/compiledb"
	"github.com/standardbeagle/hctxindex/internal/config"
	"github.com/standardbeagle/hctxindex/internal/debug"
	hcxerrors "github.com/standardbeagle/hctxindex/internal/errors"
	"github.com/standardbeagle/hctxindex/internal/headerindex"
	"github.com/standardbeagle/hctxindex/internal/idx"
	"github.com/standardbeagle/hctxindex/internal/includegraph"
	"github.com/standardbeagle/hctxindex/internal/lookup"
	"github.com/standardbeagle/hctxindex/internal/rawindex"
	"github.com/standardbeagle/hctxindex/internal/scheduler"
)

// Engine is the top-level object: configured once, then driven through
// Add/Remove/IndexAll/Lookup for the lifetime of a project. mu guards
// headers and the registry's header-context bookkeeping, which indexOne
// goroutines touch concurrently.
type Engine struct {
	cfg      *config.Config
	provider ast.Provider
	db       *compiledb.Database
	registry *includegraph.Registry
	sched    *scheduler.Scheduler
	builder  *rawindex.Builder

	mu      sync.Mutex
	headers map[string]*headerindex.HeaderIndex

	lookupEngine *lookup.Engine

	// blobSeq disambiguates blob file names written within the same
	// millisecond (spec §4.D "basename(file).<mtime_ms+jitter>"; the
	// jitter is this counter rather than a random number, so names stay
	// deterministic under test).
	blobSeq uint32
}

// New builds an Engine from cfg, loading the compilation database at
// cfg.CompileDB.Path (resolved relative to cfg.Project.Root) and wiring
// provider as the AST front-end.
func New(cfg *config.Config, provider ast.Provider) (*Engine, error) {
	dbPath := cfg.CompileDB.Path
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(cfg.Project.Root, dbPath)
	}
	db, err := compiledb.Load(dbPath)
	if err != nil {
		return nil, hcxerrors.IoErrorFor(dbPath, "load_compiledb", err)
	}

	registry, err := includegraph.Load(indexDirFor(cfg))
	if err != nil {
		return nil, err
	}
	registry.Include = cfg.Include
	registry.Exclude = cfg.Exclude

	e := &Engine{
		cfg:      cfg,
		provider: provider,
		db:       db,
		registry: registry,
		builder:  rawindex.NewBuilder(registry.Accepts),
		headers:  make(map[string]*headerindex.HeaderIndex),
	}

	e.lookupEngine = lookup.NewWithOpener(registry, e.openBlob)
	e.sched = scheduler.New(cfg.Scheduler.Concurrency, e.indexOne)

	return e, nil
}

// Add schedules file for indexing (spec §4.E "add"): a no-op if file has
// no compile command beyond logging a recoverable NotIndexable error.
func (e *Engine) Add(file string) {
	e.sched.Add(file)
}

// Remove drops file from the scheduler and its registry entry, releasing
// any header contexts it alone held (spec §4.E "remove").
func (e *Engine) Remove(file string) {
	e.sched.Remove(file)

	e.lock()
	defer e.unlock()

	orphans := e.registry.RemoveTU(file)
	for _, headerPath := range orphans {
		if hi, ok := e.headers[headerPath]; ok {
			hi.Remove(headerPath)
			if hi.FileCount() == 0 {
				delete(e.headers, headerPath)
			}
		}
	}
}

// IndexAll schedules add(file) for every entry of the compilation
// database (spec §4.E "index_all").
func (e *Engine) IndexAll() {
	e.sched.IndexAll(e.db.Files())
}

// Accepts reports whether path should participate in indexing under the
// engine's include/exclude configuration. Exposed so a filesystem
// watcher can filter raw fsnotify events before calling Add/Remove.
func (e *Engine) Accepts(path string) bool {
	return e.registry.Accepts(path)
}

// Wait blocks until every in-flight or queued indexing task has
// finished. Intended for batch callers (CLI `index` subcommand) that
// need a completion signal, not for steady-state daemon operation.
func (e *Engine) Wait() {
	e.sched.Wait()
}

// Lookup resolves every known reference to the symbol at file:offset,
// restricted by mask (spec §4.F).
func (e *Engine) Lookup(file string, offset uint32, mask idx.RelationKind) ([]lookup.Location, error) {
	return e.lookupEngine.Lookup(file, offset, mask)
}

// HierarchyPrepare resolves every call- and type-hierarchy edge attached
// to the symbol at file:offset: who calls it, what it calls, its bases,
// and its derived types (spec §6 "hierarchy_prepare").
func (e *Engine) HierarchyPrepare(file string, offset uint32) ([]lookup.Location, error) {
	return e.Lookup(file, offset, idx.RelationCaller|idx.RelationCallee|idx.RelationBase|idx.RelationDerived)
}

// IncomingCalls resolves every call site that calls the symbol at
// file:offset (spec §6 "incoming_calls").
func (e *Engine) IncomingCalls(file string, offset uint32) ([]lookup.Location, error) {
	return e.Lookup(file, offset, idx.RelationCallee)
}

// OutgoingCalls resolves every call the symbol at file:offset makes
// (spec §6 "outgoing_calls").
func (e *Engine) OutgoingCalls(file string, offset uint32) ([]lookup.Location, error) {
	return e.Lookup(file, offset, idx.RelationCaller)
}

// Supertypes resolves the base classes of the symbol at file:offset
// (spec §6 "supertypes").
func (e *Engine) Supertypes(file string, offset uint32) ([]lookup.Location, error) {
	return e.Lookup(file, offset, idx.RelationBase)
}

// Subtypes resolves the derived classes of the symbol at file:offset
// (spec §6 "subtypes").
func (e *Engine) Subtypes(file string, offset uint32) ([]lookup.Location, error) {
	return e.Lookup(file, offset, idx.RelationDerived)
}

// ContextsOf returns every header context recorded for path, or nil if
// path is not a known header.
func (e *Engine) ContextsOf(path string) []headerindex.HeaderContext {
	e.lock()
	defer e.unlock()

	hi, ok := e.headers[path]
	if !ok {
		return nil
	}
	out := make([]headerindex.HeaderContext, 0, len(hi.HeaderContexts))
	for _, ctxs := range hi.HeaderContexts {
		out = append(out, ctxs...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HctxID < out[j].HctxID })
	return out
}

// CurrentContext returns the registry's notion of the "active" header
// context for path (spec Open Question, resolved as "context 0 of the
// first TU registered" — see DESIGN.md).
func (e *Engine) CurrentContext(path string) (tu string, contextIndex int, ok bool) {
	header, exists := e.registry.Headers[path]
	if !exists || header.ActiveTU == "" {
		return "", 0, false
	}
	return header.ActiveTU, header.ActiveContext, true
}

// Close persists the registry snapshot to <index dir>/index.json so the
// next New() call picks up where this one left off (spec §4.D
// "Persistence"). Callers should invoke it once, after Wait(), as part of
// an orderly shutdown.
func (e *Engine) Close() error {
	if err := os.MkdirAll(e.indexDir(), 0o755); err != nil {
		return hcxerrors.IoErrorFor(e.indexDir(), "mkdir", err)
	}
	e.lock()
	defer e.unlock()
	return e.registry.Save(e.indexDir())
}

func (e *Engine) lock()   { e.mu.Lock() }
func (e *Engine) unlock() { e.mu.Unlock() }

func indexDirFor(cfg *config.Config) string {
	if filepath.IsAbs(cfg.Index.Dir) {
		return cfg.Index.Dir
	}
	return filepath.Join(cfg.Project.Root, cfg.Index.Dir)
}

func (e *Engine) indexDir() string {
	return indexDirFor(e.cfg)
}

func (e *Engine) openBlob(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// blobPath returns a fresh, never-reused on-disk path for a blob built
// from headerPath's content: <dir>/<basename>.<mtime_ms><jitter>.sidx
// (spec §4.D, §6). Every call names a distinct file so a concurrent
// indexer writing the same header can never collide with this one, and
// so the write-then-rename in mergeAndPersist never has to worry about
// an in-flight reader seeing a half-written file at this exact path.
func (e *Engine) blobPath(headerPath string) string {
	mtimeMs := time.Now().UnixMilli()
	jitter := atomic.AddUint32(&e.blobSeq, 1) % 1000
	name := fmt.Sprintf("%s.%d%03d.sidx", filepath.Base(headerPath), mtimeMs, jitter)
	return filepath.Join(e.indexDir(), name)
}

// writeBlobAtomic writes data to a temp file in the same directory as
// path and renames it into place, so a reader opening path either sees
// the complete prior content or the complete new content — never a
// partial write (spec §5 "append-once... then the registry pointer is
// swapped").
func writeBlobAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// indexOne is the scheduler's IndexFunc: it compiles file, records its
// include chain, builds and merges per-touched-file raw indexes, and
// persists each as an on-disk blob (spec §4.E, §4.B, §4.C, §4.G chained
// together for one file).
func (e *Engine) indexOne(ctx context.Context, file string) error {
	argv, ok := e.db.Argv(file)
	if !ok {
		return hcxerrors.NotIndexableError(file)
	}

	tu, err := e.provider.Parse(file, argv, e.registry.Accepts)
	if err != nil {
		return hcxerrors.CompileFailedError(file, err)
	}
	if ctx.Err() != nil {
		return hcxerrors.New(hcxerrors.Cancelled, file, "parse", ctx.Err())
	}

	e.lock()
	registryTU := e.registry.AddIncludeChain(file, tu.Includes, time.Now())
	e.unlock()

	perFile := e.builder.Build(tu)

	if err := os.MkdirAll(e.indexDir(), 0o755); err != nil {
		return hcxerrors.IoErrorFor(e.indexDir(), "mkdir", err)
	}

	for touched, raw := range perFile {
		if err := e.mergeAndPersist(touched, file, registryTU, raw); err != nil {
			debug.LogScheduler("persisting index for %q (touched by %q) failed: %v", touched, file, err)
		}
	}

	return nil
}

func (e *Engine) mergeAndPersist(headerPath, tuPath string, registryTU *includegraph.TranslationUnit, raw *rawindex.RawIndex) error {
	e.lock()
	hi, ok := e.headers[headerPath]
	if !ok {
		hi = headerindex.New()
		e.headers[headerPath] = hi
	}

	include := -1
	if headerPath == tuPath {
		include = -1
	} else if refs := e.registry.Headers[headerPath]; refs != nil {
		if contexts := refs.Contexts[tuPath]; len(contexts) > 0 {
			include = contexts[len(contexts)-1].Include
		}
	}

	hi.Merge(headerPath, uint32(include), raw)
	data, hash, err := blob.Encode(&hi.RawIndex)
	e.unlock()

	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	path := e.blobPath(headerPath)
	if err := writeBlobAtomic(path, data); err != nil {
		return hcxerrors.IoErrorFor(path, "write_blob", err)
	}

	e.lock()
	if headerPath == tuPath {
		registryTU.IndexPath = path
	}
	e.registry.RecordIndexFile(headerPath, tuPath, includegraph.IndexFile{Path: path, Hash: hash})
	e.unlock()

	return nil
}
