package rawindex

import (
	"github.com/standardbeagle/hctxindex/internal/ast"
	"github.com/standardbeagle/hctxindex/internal/debug"
	"github.com/standardbeagle/hctxindex/internal/idx"
)

// Builder walks one compiled translation unit's AST (via ast.Provider's
// output) and produces a RawIndex per interested file (spec §4.B).
//
// The builder never fails outright: an unprocessable occasion is skipped
// with a debug event and the RawIndex built so far remains valid (spec
// §4.B "Failure semantics").
type Builder struct {
	interest ast.InterestFilter
}

// NewBuilder returns a Builder that records occasions for every file
// interest accepts. A nil interest accepts everything.
func NewBuilder(interest ast.InterestFilter) *Builder {
	return &Builder{interest: interest}
}

func (b *Builder) accepts(file string) bool {
	return b.interest == nil || b.interest(file)
}

// Build walks tu and returns one RawIndex per file touched, keyed by file
// path (spec §4.B "Output: For each file touched by the TU, a RawIndex").
func (b *Builder) Build(tu *ast.TranslationUnitAST) map[string]*RawIndex {
	perFile := make(map[string]*RawIndex)

	get := func(file string) *RawIndex {
		if r, ok := perFile[file]; ok {
			return r
		}
		r := New()
		perFile[file] = r
		return r
	}

	for _, occ := range tu.Occasions {
		b.handleOccasion(get, occ)
	}

	for _, call := range tu.CallSites {
		b.handleCallSite(get, call)
	}

	for _, amb := range tu.AmbiguousLookups {
		b.handleAmbiguousLookup(get, amb)
	}

	return perFile
}

// declFile returns the file a Decl's range belongs in; a Decl the front-end
// could not attribute to a file is not processable and is skipped (spec
// §4.B "An invalid or out-of-file source location is dropped silently").
func declFile(d ast.Decl) (string, bool) {
	return d.File, d.File != ""
}

func (b *Builder) handleOccasion(get func(string) *RawIndex, occ ast.Occasion) {
	subject := occ.Subject
	file, ok := declFile(subject)
	if !ok || !b.accepts(file) {
		debug.LogRawIndex("dropping occasion for %q: no interested file", subject.Name)
		return
	}
	raw := get(file)
	if subject.CanonicalText == "" {
		debug.LogRawIndex("dropping occasion for %q: empty canonical text", subject.Name)
		return
	}

	symID := idx.HashSymbolName(subject.CanonicalText)
	sym := raw.GetOrCreateSymbol(symID, subject.Name, subject.Kind.ToSymbolKind())

	target := idx.Zero
	if occ.Target.CanonicalText != "" {
		target = idx.HashSymbolName(occ.Target.CanonicalText)
	}

	// The element id half of Ctx is a placeholder: internal/headerindex's
	// Merge reassigns the real element id (dependent or independent side
	// table) the first time it sees this relation/occurrence, per
	// idx.Contextual's doc comment. Only the dependent/independent bit set
	// here survives the merge.
	ctx := idx.NewContextual(0, subject.Conditional)

	// Step 4: occurrence at the spelling location for plain references.
	isRefLike := occ.Kind == idx.RelationDeclaration || occ.Kind == idx.RelationDefinition || occ.Kind == idx.RelationReference
	if isRefLike && subject.HasSpellingLoc &&
		(subject.RangeLocKind == ast.LocFile || subject.RangeLocKind == ast.LocMacroArgExpansion) {
		raw.AddOccurrence(Occurrence{Range: subject.SpellingRange, Target: symID, Ctx: ctx})
	}

	// Step 3/5: the relation is always recorded at the expansion range, so
	// that macro sources show which expansion produced it (spec §4.B step
	// 5; original_source/src/Index/Memory.cpp records exactly one relation
	// per occasion, at the expansion location — followed here in place of
	// the spec's two separately numbered steps, see SPEC_FULL.md's Open
	// Questions resolution).
	//
	// Dependent/independent tagging: a declaration spliced from inside an
	// active #if/#ifdef/#ifndef block is dependent — its presence varies
	// with which macros were defined for this parse. An unconditional
	// declaration is independent (every parse sees it the same way). The
	// merge step (internal/headerindex) reads this bit before reassigning a
	// real element id.
	sym.AddRelation(Relation{Kind: occ.Kind, Range: subject.ExpansionRange, Target: target, Ctx: ctx})
}

func (b *Builder) handleCallSite(get func(string) *RawIndex, call ast.CallSite) {
	callerFile, ok := declFile(call.Caller)
	if ok && b.accepts(callerFile) && call.Caller.CanonicalText != "" && call.Callee.CanonicalText != "" {
		raw := get(callerFile)
		callerID := idx.HashSymbolName(call.Caller.CanonicalText)
		calleeID := idx.HashSymbolName(call.Callee.CanonicalText)
		sym := raw.GetOrCreateSymbol(callerID, call.Caller.Name, call.Caller.Kind.ToSymbolKind())
		sym.AddRelation(Relation{Kind: idx.RelationCaller, Range: call.Range, Target: calleeID})
	}

	calleeFile, ok := declFile(call.Callee)
	if ok && b.accepts(calleeFile) && call.Caller.CanonicalText != "" && call.Callee.CanonicalText != "" {
		raw := get(calleeFile)
		callerID := idx.HashSymbolName(call.Caller.CanonicalText)
		calleeID := idx.HashSymbolName(call.Callee.CanonicalText)
		sym := raw.GetOrCreateSymbol(calleeID, call.Callee.Name, call.Callee.Kind.ToSymbolKind())
		sym.AddRelation(Relation{Kind: idx.RelationCallee, Range: call.Range, Target: callerID})
	}
}

// handleAmbiguousLookup records every resolver candidate as a separate
// occurrence sharing the call-site range, rather than as relations on a
// single subject symbol, since a genuinely dependent name has no single
// canonical subject to attach them to (spec §4.B "best-effort; a test can
// verify coverage but not uniqueness").
//
// These occurrences are tagged dependent: a dependent-name resolution's
// candidate set is exactly the kind of element the glossary describes as
// "whose presence varies across canonical contexts" (original_source's
// RawIndex header that assigns this tag at build time was not part of the
// retrieved pack; tagging ambiguous-lookup output as the dependent case is
// this module's resolution of that gap — see DESIGN.md).
func (b *Builder) handleAmbiguousLookup(get func(string) *RawIndex, amb ast.AmbiguousLookup) {
	file, ok := declFile(amb.Site)
	if !ok || !b.accepts(file) {
		return
	}
	raw := get(file)
	for _, cand := range amb.Candidates {
		if cand.CanonicalText == "" {
			continue
		}
		candID := idx.HashSymbolName(cand.CanonicalText)
		raw.AddOccurrence(Occurrence{
			Range:  amb.Site.Range,
			Target: candID,
			Ctx:    idx.NewContextual(0, true),
		})
	}
}
