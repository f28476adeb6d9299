package blob

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/standardbeagle/hctxindex/internal/idx"
)

// Reader gives O(1)-open, lazy access to an encoded blob: opening one
// only parses the fixed header, and every other table is read on demand
// by slicing the backing byte slice (spec §4.G/§4.F "must not load a
// blob's strings eagerly", "may not hold more than O(1) blob files open
// at a time").
type Reader struct {
	data []byte
	hdr  header
}

// Open parses data's header and returns a Reader. data is retained, not
// copied; the caller owns its lifetime (typically an mmap'd or fully
// read file).
func Open(data []byte) (*Reader, error) {
	h, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}
	return &Reader{data: data, hdr: h}, nil
}

// SymbolCount returns the number of symbols stored in the blob.
func (r *Reader) SymbolCount() int { return int(r.hdr.SymbolCount) }

// RelationView is one relation edge read back from a blob, with its
// range resolved from the range table.
type RelationView struct {
	Kind   idx.RelationKind
	Range  idx.Range
	Target idx.SymbolID
	Ctx    idx.Contextual
}

// SymbolView is a lazily-resolved view of one stored symbol: Name is
// sliced directly out of the blob's string pool the first time it's
// asked for, never eagerly.
type SymbolView struct {
	r         *Reader
	ID        idx.SymbolID
	Kind      idx.SymbolKind
	nameOff   uint32
	nameLen   uint32
	relStart  uint32
	relCount  uint32
}

// Name resolves this symbol's textual name from the string pool.
func (s SymbolView) Name() string {
	off := s.r.hdr.StringPoolOff + s.nameOff
	return string(s.r.data[off : off+s.nameLen])
}

// Relations resolves every relation recorded for this symbol.
func (s SymbolView) Relations() ([]RelationView, error) {
	out := make([]RelationView, 0, s.relCount)
	base := int(s.r.hdr.RelationTableOff) + int(s.relStart)*relEntrySize
	for i := uint32(0); i < s.relCount; i++ {
		off := base + int(i)*relEntrySize
		if off+relEntrySize > len(s.r.data) {
			return nil, fmt.Errorf("blob: relation table out of bounds at %d", off)
		}
		kind := binary.LittleEndian.Uint32(s.r.data[off:])
		rangeID := binary.LittleEndian.Uint32(s.r.data[off+4:])
		target := binary.LittleEndian.Uint64(s.r.data[off+8:])
		ctx := binary.LittleEndian.Uint32(s.r.data[off+16:])
		rng, err := s.r.rangeAt(rangeID)
		if err != nil {
			return nil, err
		}
		out = append(out, RelationView{
			Kind:   idx.RelationKind(kind),
			Range:  rng,
			Target: idx.SymbolID(target),
			Ctx:    idx.Contextual(ctx),
		})
	}
	return out, nil
}

func (r *Reader) symbolEntryAt(i int) (SymbolView, error) {
	if i < 0 || i >= int(r.hdr.SymbolCount) {
		return SymbolView{}, fmt.Errorf("blob: symbol index %d out of range", i)
	}
	off := int(r.hdr.SymbolTableOff) + i*symbolEntrySize
	if off+symbolEntrySize > len(r.data) {
		return SymbolView{}, fmt.Errorf("blob: symbol table out of bounds at %d", off)
	}
	id := binary.LittleEndian.Uint64(r.data[off:])
	nameOff := binary.LittleEndian.Uint32(r.data[off+8:])
	nameLen := binary.LittleEndian.Uint32(r.data[off+12:])
	kind := binary.LittleEndian.Uint32(r.data[off+16:])
	relStart := binary.LittleEndian.Uint32(r.data[off+20:])
	relCount := binary.LittleEndian.Uint32(r.data[off+24:])
	return SymbolView{
		r: r, ID: idx.SymbolID(id), Kind: idx.SymbolKind(kind),
		nameOff: nameOff, nameLen: nameLen, relStart: relStart, relCount: relCount,
	}, nil
}

// SymbolAt returns the i-th symbol in ascending SymbolID order.
func (r *Reader) SymbolAt(i int) (SymbolView, error) { return r.symbolEntryAt(i) }

// FindSymbol binary-searches the symbol table for id (stored sorted
// ascending by Encode). On a SymbolID collision the table may contain at
// most one entry per id — collisions between distinct canonical texts are
// resolved by the caller pairing id with the symbol's name, per
// idx.SymbolID's doc comment.
func (r *Reader) FindSymbol(id idx.SymbolID) (SymbolView, bool) {
	n := int(r.hdr.SymbolCount)
	i := sort.Search(n, func(i int) bool {
		sv, err := r.symbolEntryAt(i)
		if err != nil {
			return true
		}
		return sv.ID >= id
	})
	if i >= n {
		return SymbolView{}, false
	}
	sv, err := r.symbolEntryAt(i)
	if err != nil || sv.ID != id {
		return SymbolView{}, false
	}
	return sv, true
}

func (r *Reader) rangeAt(id uint32) (idx.Range, error) {
	if id >= r.hdr.RangeCount {
		return idx.Range{}, fmt.Errorf("blob: range id %d out of range", id)
	}
	off := int(r.hdr.RangeTableOff) + int(id)*rangeEntrySize
	if off+rangeEntrySize > len(r.data) {
		return idx.Range{}, fmt.Errorf("blob: range table out of bounds at %d", off)
	}
	return idx.Range{
		Begin: binary.LittleEndian.Uint32(r.data[off:]),
		End:   binary.LittleEndian.Uint32(r.data[off+4:]),
	}, nil
}

// OccurrenceView is one stored occurrence resolved back to its concrete
// range, target symbol, and context tag.
type OccurrenceView struct {
	Range  idx.Range
	Target idx.SymbolID
	Ctx    idx.Contextual
}

func (r *Reader) occGroupAt(i int) (rangeID, entryStart, entryCount uint32, err error) {
	off := int(r.hdr.OccGroupTableOff) + i*occGroupSize
	if off+occGroupSize > len(r.data) {
		return 0, 0, 0, fmt.Errorf("blob: occurrence group table out of bounds at %d", off)
	}
	return binary.LittleEndian.Uint32(r.data[off:]),
		binary.LittleEndian.Uint32(r.data[off+4:]),
		binary.LittleEndian.Uint32(r.data[off+8:]), nil
}

// OccurrenceGroupCount returns the number of distinct ranges with
// recorded occurrences.
func (r *Reader) OccurrenceGroupCount() int { return int(r.hdr.OccGroupCount) }

// OccurrencesAt returns every occurrence recorded at the i-th distinct
// range, in ascending-range order.
func (r *Reader) OccurrencesAt(i int) ([]OccurrenceView, error) {
	rangeID, entryStart, entryCount, err := r.occGroupAt(i)
	if err != nil {
		return nil, err
	}
	rng, err := r.rangeAt(rangeID)
	if err != nil {
		return nil, err
	}
	out := make([]OccurrenceView, 0, entryCount)
	base := int(r.hdr.OccEntryTableOff) + int(entryStart)*occEntrySize
	for k := uint32(0); k < entryCount; k++ {
		off := base + int(k)*occEntrySize
		target := binary.LittleEndian.Uint64(r.data[off:])
		ctx := binary.LittleEndian.Uint32(r.data[off+8:])
		out = append(out, OccurrenceView{Range: rng, Target: idx.SymbolID(target), Ctx: idx.Contextual(ctx)})
	}
	return out, nil
}

// OccurrencesCovering returns every occurrence whose range contains
// offset (spec §4.F step 2 "a lower-bound scan finds the span whose
// range contains offset"), found via binary search over the occurrence
// group table, which Encode stores sorted by range.
func (r *Reader) OccurrencesCovering(offset uint32) ([]OccurrenceView, idx.Range, bool, error) {
	n := int(r.hdr.OccGroupCount)
	i := sort.Search(n, func(i int) bool {
		rangeID, _, _, err := r.occGroupAt(i)
		if err != nil {
			return true
		}
		rng, err := r.rangeAt(rangeID)
		if err != nil {
			return true
		}
		return rng.End >= offset
	})
	for ; i < n; i++ {
		rangeID, _, _, err := r.occGroupAt(i)
		if err != nil {
			return nil, idx.Range{}, false, err
		}
		rng, err := r.rangeAt(rangeID)
		if err != nil {
			return nil, idx.Range{}, false, err
		}
		if rng.Begin > offset {
			break
		}
		if rng.Contains(offset) {
			occs, err := r.OccurrencesAt(i)
			return occs, rng, err == nil, err
		}
	}
	return nil, idx.Range{}, false, nil
}
