package blob

import (
	"testing"

	"github.com/standardbeagle/hctxindex/internal/idx"
	"github.com/standardbeagle/hctxindex/internal/rawindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRawIndex() *rawindex.RawIndex {
	raw := rawindex.New()

	foo := raw.GetOrCreateSymbol(idx.HashSymbolName("c:@F@foo#"), "foo", idx.KindFunction)
	foo.AddRelation(rawindex.Relation{Kind: idx.RelationDefinition, Range: idx.Range{Begin: 0, End: 10}})
	foo.AddRelation(rawindex.Relation{Kind: idx.RelationReference, Range: idx.Range{Begin: 20, End: 23}})

	bar := raw.GetOrCreateSymbol(idx.HashSymbolName("c:@F@bar#"), "bar", idx.KindFunction)
	bar.AddRelation(rawindex.Relation{
		Kind: idx.RelationCallee, Range: idx.Range{Begin: 20, End: 23}, Target: foo.ID,
	})

	raw.AddOccurrence(rawindex.Occurrence{Range: idx.Range{Begin: 0, End: 10}, Target: foo.ID})
	raw.AddOccurrence(rawindex.Occurrence{Range: idx.Range{Begin: 20, End: 23}, Target: foo.ID})
	raw.AddOccurrence(rawindex.Occurrence{Range: idx.Range{Begin: 20, End: 23}, Target: bar.ID})

	return raw
}

func TestEncode_Deterministic(t *testing.T) {
	raw := sampleRawIndex()

	data1, hash1, err := Encode(raw)
	require.NoError(t, err)
	data2, hash2, err := Encode(raw)
	require.NoError(t, err)

	assert.Equal(t, data1, data2, "encoding the same RawIndex twice must be byte-identical")
	assert.Equal(t, hash1, hash2)
	assert.False(t, hash1.IsZero())
}

func TestEncode_DiffersOnChange(t *testing.T) {
	raw := sampleRawIndex()
	data1, _, err := Encode(raw)
	require.NoError(t, err)

	raw.GetOrCreateSymbol(idx.HashSymbolName("c:@F@baz#"), "baz", idx.KindFunction)
	data2, _, err := Encode(raw)
	require.NoError(t, err)

	assert.NotEqual(t, data1, data2)
}

func TestRoundTrip_PreservesSymbolsAndOccurrences(t *testing.T) {
	raw := sampleRawIndex()
	data, _, err := Encode(raw)
	require.NoError(t, err)

	decoded, err := DecodeToRawIndex(data)
	require.NoError(t, err)

	assert.Equal(t, raw.SymbolCount(), decoded.SymbolCount())
	assert.Equal(t, raw.OccurrenceCount(), decoded.OccurrenceCount())

	fooID := idx.HashSymbolName("c:@F@foo#")
	origFoo := raw.Symbols[fooID]
	gotFoo := decoded.Symbols[fooID]
	require.NotNil(t, gotFoo)
	assert.Equal(t, origFoo.Name, gotFoo.Name)
	assert.Equal(t, origFoo.Kind, gotFoo.Kind)
	assert.ElementsMatch(t, origFoo.Relations, gotFoo.Relations)
}

func TestReader_FindSymbol(t *testing.T) {
	raw := sampleRawIndex()
	data, _, err := Encode(raw)
	require.NoError(t, err)

	r, err := Open(data)
	require.NoError(t, err)

	fooID := idx.HashSymbolName("c:@F@foo#")
	sv, ok := r.FindSymbol(fooID)
	require.True(t, ok)
	assert.Equal(t, "foo", sv.Name())
	assert.Equal(t, idx.KindFunction, sv.Kind)

	rels, err := sv.Relations()
	require.NoError(t, err)
	assert.Len(t, rels, 2)

	_, ok = r.FindSymbol(idx.SymbolID(0xdeadbeef))
	assert.False(t, ok)
}

func TestReader_OccurrencesCovering(t *testing.T) {
	raw := sampleRawIndex()
	data, _, err := Encode(raw)
	require.NoError(t, err)

	r, err := Open(data)
	require.NoError(t, err)

	occs, rng, found, err := r.OccurrencesCovering(21)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, idx.Range{Begin: 20, End: 23}, rng)
	assert.Len(t, occs, 2)

	_, _, found, err = r.OccurrencesCovering(100)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestOpen_RejectsTruncated(t *testing.T) {
	_, err := Open([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestOpen_RejectsBadMagic(t *testing.T) {
	raw := sampleRawIndex()
	data, _, err := Encode(raw)
	require.NoError(t, err)

	corrupt := append([]byte(nil), data...)
	corrupt[0] ^= 0xFF
	_, err = Open(corrupt)
	assert.Error(t, err)
}
