// Package ast declares the read-only contract the index core consumes from
// an external AST compiler front-end (spec §1: "out of scope — we specify
// only the interfaces the core consumes"). A real integration (libclang,
// clangd's own ASTContext, or a tree-sitter grammar as in
// internal/cxxfrontend) implements Provider; internal/rawindex only ever
// calls back into it.
package ast

import "github.com/standardbeagle/hctxindex/internal/idx"

// DeclKind closes the set of declaration-node variants the core dispatches
// on, replacing the original's CRTP AST-visitor hierarchy with a tagged
// variant (spec §9 "Deep inheritance / polymorphism").
type DeclKind uint8

const (
	DeclUnknown DeclKind = iota
	DeclNamespace
	DeclClass
	DeclStruct
	DeclUnion
	DeclEnum
	DeclEnumMember
	DeclField
	DeclFunction
	DeclMethod
	DeclConstructor
	DeclDestructor
	DeclVariable
	DeclParameter
	DeclTypeAlias
	DeclConcept
	DeclMacro
	DeclLabel
)

// ToSymbolKind maps a DeclKind to the idx.SymbolKind reported to callers.
func (k DeclKind) ToSymbolKind() idx.SymbolKind {
	switch k {
	case DeclNamespace:
		return idx.KindNamespace
	case DeclClass:
		return idx.KindClass
	case DeclStruct:
		return idx.KindStruct
	case DeclUnion:
		return idx.KindUnion
	case DeclEnum:
		return idx.KindEnum
	case DeclEnumMember:
		return idx.KindEnumMember
	case DeclField:
		return idx.KindField
	case DeclFunction:
		return idx.KindFunction
	case DeclMethod, DeclConstructor, DeclDestructor:
		return idx.KindMethod
	case DeclVariable:
		return idx.KindVariable
	case DeclParameter:
		return idx.KindParameter
	case DeclTypeAlias:
		return idx.KindTypeAlias
	case DeclConcept:
		return idx.KindConcept
	case DeclMacro:
		return idx.KindMacro
	case DeclLabel:
		return idx.KindLabel
	default:
		return idx.KindUnknown
	}
}

// LocKind distinguishes where a source range sits relative to macro
// expansion, mirroring clang's isFileID()/isMacroID()/macro-argument
// distinction that §4.B's algorithm branches on.
type LocKind uint8

const (
	LocInvalid LocKind = iota
	LocFile
	LocMacroArgExpansion
	LocMacroBody
)

// Decl is one declaration-reference occasion the front-end reports to the
// builder: a node plus the relation kind the traversal assigned it.
type Decl struct {
	// CanonicalText is the already-canonicalized textual form (a USR-like
	// string) the builder hashes into a idx.SymbolID. The front-end is
	// responsible for canonicalization (redeclaration-chain folding,
	// primary-template substitution, implicit-instantiation member
	// lookup) per spec §4.B step 1 — the core only hashes and compares.
	CanonicalText string

	// File is the interested file this occasion is attached to. An empty
	// File (or empty CanonicalText) means the location was invalid or
	// outside any interested file and must be dropped silently.
	File string

	Name string
	Kind DeclKind

	// Range is the range attached to this occasion: the identifier token
	// for a definition, the call-site range for a call, etc.
	Range idx.Range

	// SpellingRange is set only when LocKind is LocFile or
	// LocMacroArgExpansion; it is where an Occurrence should be recorded
	// per spec §4.B step 4.
	SpellingRange   idx.Range
	HasSpellingLoc  bool
	ExpansionRange  idx.Range
	RangeLocKind    LocKind

	// Conditional is true when this declaration was spliced from inside an
	// active #if/#ifdef/#ifndef block, i.e. its presence in the parse
	// depends on which macros were defined (spec §3 glossary's "dependent"
	// element, as opposed to one present in every parse regardless of
	// header context).
	Conditional bool
}

// TargetRef names the symbol a relation points to, or the zero value for a
// self-contained declaration/definition relation.
type TargetRef struct {
	CanonicalText string // empty for a self relation
}

// Occasion is one thing for the builder to record: a declaration occasion
// (kind, location) plus, when non-self, the symbol it relates to.
type Occasion struct {
	Subject Decl
	Kind    idx.RelationKind
	Target  TargetRef // zero value => self (target_symbol == 0)
}

// CallSite additionally carries the callee so the builder can emit the
// paired Caller/Callee relations required by spec §4.B.
type CallSite struct {
	Caller Decl
	Callee Decl
	Range  idx.Range
}

// AmbiguousLookup is a best-effort dependent-name lookup result: the
// resolver yields every plausible candidate and the builder records a
// relation to each (spec §4.B "best-effort; a test can verify coverage but
// not uniqueness").
type AmbiguousLookup struct {
	Site       Decl
	Candidates []Decl
}

// TranslationUnitAST is the read-only tree of declarations for one
// compiled TU plus its macro-expansion map, as produced by the external
// front-end. Provider.Parse returns one of these; internal/rawindex's
// Builder walks it.
type TranslationUnitAST struct {
	MainFile string

	// Occasions is the flattened output of the recursive AST descent:
	// every declaration node with a valid location inside an interested
	// file, already reduced to (subject, kind, target) triples. A real
	// clang-based front-end performs the traversal internally; this type
	// only carries the result across the Provider boundary.
	Occasions []Occasion

	CallSites []CallSite

	AmbiguousLookups []AmbiguousLookup

	// TouchedFiles lists every file with at least one occasion recorded
	// against it (the TU's main file plus every header it pulled in).
	TouchedFiles []string

	// Includes describes the #include edges discovered while compiling
	// this TU, consumed by internal/includegraph to build include chains.
	Includes []IncludeEdge
}

// IncludeEdge is one #include directive: FromFile includes ToFile at Line.
// ParentIndex is the index into TranslationUnitAST.Includes of the include
// that pulled in FromFile itself, or -1 if FromFile is the TU's main file.
type IncludeEdge struct {
	FromFile    string
	ToFile      string
	Line        uint32
	ParentIndex int
	// GuardedAgainstReparse is true when the header was skipped on this
	// edge because of an include guard or #pragma once (spec §4.D: such
	// files are "not treated as new header contexts").
	GuardedAgainstReparse bool
}

// InterestFilter restricts which files a Provider should bother emitting
// occasions for; Parse implementations should apply it at traversal time
// rather than leave wasted filtering to the caller.
type InterestFilter func(file string) bool

// Provider is the external AST-compiler front-end contract. spec §1 places
// this component out of scope: the core depends only on this interface.
type Provider interface {
	// Parse compiles mainFile with the given compiler argv and returns the
	// resulting read-only AST, restricted to files interest accepts.
	Parse(mainFile string, argv []string, interest InterestFilter) (*TranslationUnitAST, error)
}
