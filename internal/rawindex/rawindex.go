// Package rawindex implements the spec's component B: the per-file index
// produced by walking one compiled translation unit's AST (spec §3 "raw
// per-file index", §4.B "Raw Index Builder").
package rawindex

import "github.com/standardbeagle/hctxindex/internal/idx"

// Relation is one edge from a symbol to itself or another symbol, tagged
// by relation kind (spec §3 "Relation").
type Relation struct {
	Kind   idx.RelationKind
	Range  idx.Range
	Target idx.SymbolID // zero for a self-contained relation
	Ctx    idx.Contextual
}

// relKey is the equality key used for relation-set dedup (spec invariant
// I6: "ctx is ignored for equality").
type relKey struct {
	kind   idx.RelationKind
	r      idx.Range
	target idx.SymbolID
}

func (rel Relation) key() relKey {
	return relKey{rel.Kind, rel.Range, rel.Target}
}

// Occurrence is one textual span that resolves to a symbol (spec §3).
type Occurrence struct {
	Range  idx.Range
	Target idx.SymbolID
	Ctx    idx.Contextual
}

// Symbol is one declaration's identity plus its deduplicated relation set
// (spec §3 "Symbol"; invariant I6).
type Symbol struct {
	ID        idx.SymbolID
	Name      string
	Kind      idx.SymbolKind
	Relations []Relation

	seen map[relKey]int // index into Relations, for O(1) dedup on insert
}

// AddRelation appends rel to the symbol's relation set unless an equal
// relation (by kind/range/target, ignoring ctx) is already present. It
// returns the stored relation, whether it was newly inserted, and its
// index within Relations — callers need the index to patch in a Ctx tag
// assigned later by a header-index merge.
func (s *Symbol) AddRelation(rel Relation) (stored Relation, inserted bool, index int) {
	if s.seen == nil {
		s.seen = make(map[relKey]int, 4)
	}
	k := rel.key()
	if i, ok := s.seen[k]; ok {
		return s.Relations[i], false, i
	}
	i := len(s.Relations)
	s.Relations = append(s.Relations, rel)
	s.seen[k] = i
	return rel, true, i
}

// SetRelationCtx patches the Ctx tag of the relation at index i, used by
// header-index merge once it has assigned a Contextual id.
func (s *Symbol) SetRelationCtx(i int, ctx idx.Contextual) {
	s.Relations[i].Ctx = ctx
}

// RawIndex is the output of indexing one (TU, file) pair: a flat set of
// symbols and a map from range to the occurrences recorded there (spec §3
// "RawIndex"). It carries no context structure of its own — a RawIndex
// represents exactly one concrete parse.
type RawIndex struct {
	Symbols     map[idx.SymbolID]*Symbol
	Occurrences map[idx.Range][]Occurrence
}

// New returns an empty RawIndex.
func New() *RawIndex {
	return &RawIndex{
		Symbols:     make(map[idx.SymbolID]*Symbol),
		Occurrences: make(map[idx.Range][]Occurrence),
	}
}

// GetOrCreateSymbol returns the existing Symbol for id, creating it (with
// name/kind) if absent.
func (r *RawIndex) GetOrCreateSymbol(id idx.SymbolID, name string, kind idx.SymbolKind) *Symbol {
	if sym, ok := r.Symbols[id]; ok {
		return sym
	}
	sym := &Symbol{ID: id, Name: name, Kind: kind}
	r.Symbols[id] = sym
	return sym
}

// AddOccurrence appends occ to the occurrence list for its range unless an
// occurrence with the same target is already recorded there, and returns
// its index in that list. Multiple occurrences may legitimately share a
// range (overloads, template uses; spec §3).
func (r *RawIndex) AddOccurrence(occ Occurrence) (index int) {
	group := r.Occurrences[occ.Range]
	for i, existing := range group {
		if existing.Target == occ.Target {
			return i
		}
	}
	index = len(group)
	r.Occurrences[occ.Range] = append(group, occ)
	return index
}

// SetOccurrenceCtx patches the Ctx tag of the occurrence at (rng, index).
func (r *RawIndex) SetOccurrenceCtx(rng idx.Range, index int, ctx idx.Contextual) {
	r.Occurrences[rng][index].Ctx = ctx
}

// SymbolCount and OccurrenceCount are convenience accessors used by tests.
func (r *RawIndex) SymbolCount() int { return len(r.Symbols) }

func (r *RawIndex) OccurrenceCount() int {
	n := 0
	for _, group := range r.Occurrences {
		n += len(group)
	}
	return n
}
