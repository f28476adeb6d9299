package rawindex

import (
	"testing"

	"github.com/standardbeagle/hctxindex/internal/idx"
	"github.com/stretchr/testify/assert"
)

func TestSymbol_AddRelation_Dedup(t *testing.T) {
	sym := &Symbol{ID: idx.HashSymbolName("c:@F@foo#")}

	rel := Relation{Kind: idx.RelationDefinition, Range: idx.Range{Begin: 0, End: 3}}
	_, inserted, idx0 := sym.AddRelation(rel)
	assert.True(t, inserted)
	assert.Equal(t, 0, idx0)

	// Same kind/range/target but a different Ctx must still dedup (I6: ctx
	// is ignored for equality).
	dup := rel
	dup.Ctx = idx.NewContextual(7, true)
	_, inserted, idx1 := sym.AddRelation(dup)
	assert.False(t, inserted)
	assert.Equal(t, 0, idx1)
	assert.Len(t, sym.Relations, 1)
}

func TestSymbol_AddRelation_DistinctRanges(t *testing.T) {
	sym := &Symbol{ID: idx.HashSymbolName("c:@F@foo#")}
	sym.AddRelation(Relation{Kind: idx.RelationReference, Range: idx.Range{Begin: 0, End: 3}})
	sym.AddRelation(Relation{Kind: idx.RelationReference, Range: idx.Range{Begin: 10, End: 13}})
	assert.Len(t, sym.Relations, 2)
}

func TestSymbol_SetRelationCtx(t *testing.T) {
	sym := &Symbol{ID: idx.HashSymbolName("c:@F@foo#")}
	_, _, i := sym.AddRelation(Relation{Kind: idx.RelationDefinition, Range: idx.Range{Begin: 0, End: 3}})
	sym.SetRelationCtx(i, idx.NewContextual(5, false))
	assert.Equal(t, uint32(5), sym.Relations[i].Ctx.Offset())
	assert.False(t, sym.Relations[i].Ctx.IsDependent())
}

func TestRawIndex_GetOrCreateSymbol(t *testing.T) {
	raw := New()
	id := idx.HashSymbolName("c:@F@foo#")
	a := raw.GetOrCreateSymbol(id, "foo", idx.KindFunction)
	b := raw.GetOrCreateSymbol(id, "foo", idx.KindFunction)
	assert.Same(t, a, b)
	assert.Equal(t, 1, raw.SymbolCount())
}

func TestRawIndex_AddOccurrence_DedupByTarget(t *testing.T) {
	raw := New()
	rng := idx.Range{Begin: 0, End: 3}
	id := idx.HashSymbolName("c:@F@foo#")

	i0 := raw.AddOccurrence(Occurrence{Range: rng, Target: id})
	i1 := raw.AddOccurrence(Occurrence{Range: rng, Target: id})
	assert.Equal(t, i0, i1)
	assert.Equal(t, 1, raw.OccurrenceCount())

	other := idx.HashSymbolName("c:@F@bar#")
	raw.AddOccurrence(Occurrence{Range: rng, Target: other})
	assert.Equal(t, 2, raw.OccurrenceCount())
}

func TestRawIndex_SetOccurrenceCtx(t *testing.T) {
	raw := New()
	rng := idx.Range{Begin: 0, End: 3}
	id := idx.HashSymbolName("c:@F@foo#")
	i := raw.AddOccurrence(Occurrence{Range: rng, Target: id})
	raw.SetOccurrenceCtx(rng, i, idx.NewContextual(2, true))
	assert.True(t, raw.Occurrences[rng][i].Ctx.IsDependent())
}
