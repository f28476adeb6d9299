// Package blob implements the spec's component G: a byte-for-byte
// reproducible serialization of a RawIndex into a single flat blob, laid
// out so a reader can open it, binary-search straight to one symbol or
// occurrence, and never materialize the string pool eagerly (spec §4.G
// "Serializer", §3 "every reference inside the blob is a 32-bit offset
// from the blob base").
//
// Grounded on the teacher's internal/testing/binary_snapshot.go, which
// encodes index-like state with repeated binary.Write(&buf,
// binary.LittleEndian, ...) calls against a bytes.Buffer and sorts map
// keys first for determinism; this package follows the same idiom rather
// than the newer encoding/binary Append helpers, for consistency with the
// rest of the module.
package blob

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/standardbeagle/hctxindex/internal/idx"
	"github.com/standardbeagle/hctxindex/internal/rawindex"
)

// magic identifies a hctxindex blob; version bumps whenever the layout
// below changes incompatibly.
const (
	magic   uint32 = 0x48435849 // "HCXI"
	version uint32 = 1
)

const (
	headerSize      = 4*7 + 4*6 // counts + section offsets, see header struct
	symbolEntrySize = 28        // SymbolID(8) NameOff(4) NameLen(4) Kind(4) RelStart(4) RelCount(4)
	occGroupSize    = 12        // RangeID(4) EntryStart(4) EntryCount(4)
	occEntrySize    = 12        // Target(8) Ctx(4)
	relEntrySize    = 20        // Kind(4) RangeID(4) Target(8) Ctx(4)
	rangeEntrySize  = 8         // Begin(4) End(4)
)

// header is the blob's fixed-size preamble. Every *Off field is a byte
// offset from the start of the blob.
type header struct {
	Magic         uint32
	Version       uint32
	SymbolCount   uint32
	OccGroupCount uint32
	OccEntryCount uint32
	RelationCount uint32
	RangeCount    uint32

	SymbolTableOff   uint32
	OccGroupTableOff uint32
	OccEntryTableOff uint32
	RelationTableOff uint32
	RangeTableOff    uint32
	StringPoolOff    uint32
}

func writeU32(buf *bytes.Buffer, v uint32) { _ = binary.Write(buf, binary.LittleEndian, v) }
func writeU64(buf *bytes.Buffer, v uint64) { _ = binary.Write(buf, binary.LittleEndian, v) }

func (h header) encode() []byte {
	var buf bytes.Buffer
	writeU32(&buf, h.Magic)
	writeU32(&buf, h.Version)
	writeU32(&buf, h.SymbolCount)
	writeU32(&buf, h.OccGroupCount)
	writeU32(&buf, h.OccEntryCount)
	writeU32(&buf, h.RelationCount)
	writeU32(&buf, h.RangeCount)
	writeU32(&buf, h.SymbolTableOff)
	writeU32(&buf, h.OccGroupTableOff)
	writeU32(&buf, h.OccEntryTableOff)
	writeU32(&buf, h.RelationTableOff)
	writeU32(&buf, h.RangeTableOff)
	writeU32(&buf, h.StringPoolOff)
	return buf.Bytes()
}

func decodeHeader(data []byte) (header, error) {
	if len(data) < headerSize {
		return header{}, fmt.Errorf("blob: truncated header (%d bytes)", len(data))
	}
	r := bytes.NewReader(data[:headerSize])
	var h header
	for _, f := range []*uint32{
		&h.Magic, &h.Version, &h.SymbolCount, &h.OccGroupCount, &h.OccEntryCount,
		&h.RelationCount, &h.RangeCount, &h.SymbolTableOff, &h.OccGroupTableOff,
		&h.OccEntryTableOff, &h.RelationTableOff, &h.RangeTableOff, &h.StringPoolOff,
	} {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return header{}, fmt.Errorf("blob: reading header: %w", err)
		}
	}
	if h.Magic != magic {
		return header{}, fmt.Errorf("blob: bad magic %x", h.Magic)
	}
	if h.Version != version {
		return header{}, fmt.Errorf("blob: unsupported version %d", h.Version)
	}
	return h, nil
}

// rangeInterner assigns stable, sorted ids to every distinct idx.Range
// referenced by a RawIndex, so occurrence and relation entries can store a
// 4-byte RangeID instead of repeating Begin/End.
type rangeInterner struct {
	ranges []idx.Range
	index  map[idx.Range]uint32
}

func newRangeInterner() *rangeInterner {
	return &rangeInterner{index: make(map[idx.Range]uint32)}
}

func (ri *rangeInterner) add(r idx.Range) {
	if _, ok := ri.index[r]; ok {
		return
	}
	ri.index[r] = uint32(len(ri.ranges))
	ri.ranges = append(ri.ranges, r)
}

// finalize sorts the collected ranges and fixes their ids; must be called
// once before id() is used.
func (ri *rangeInterner) finalize() {
	sort.Slice(ri.ranges, func(i, j int) bool { return ri.ranges[i].Less(ri.ranges[j]) })
	for i, r := range ri.ranges {
		ri.index[r] = uint32(i)
	}
}

func (ri *rangeInterner) id(r idx.Range) uint32 {
	return ri.index[r]
}

// stringPool deduplicates symbol names, assigning the first-seen offset to
// repeats so the same name is never stored twice. Each stored name is
// followed by a NUL byte; the returned length excludes it.
type stringPool struct {
	buf    bytes.Buffer
	offset map[string]uint32
}

func newStringPool() *stringPool {
	return &stringPool{offset: make(map[string]uint32)}
}

func (sp *stringPool) intern(s string) (off, length uint32) {
	if off, ok := sp.offset[s]; ok {
		return off, uint32(len(s))
	}
	off = uint32(sp.buf.Len())
	sp.buf.WriteString(s)
	sp.buf.WriteByte(0)
	sp.offset[s] = off
	return off, uint32(len(s))
}

// Encode serializes raw into a single reproducible byte slice and returns
// its content hash alongside. Encoding the same RawIndex value twice
// always yields identical bytes (spec §4.G reproducibility): every map is
// walked in a sorted, deterministic order.
func Encode(raw *rawindex.RawIndex) ([]byte, idx.ContentHash, error) {
	ri := newRangeInterner()
	for rng := range raw.Occurrences {
		ri.add(rng)
	}

	ids := make([]idx.SymbolID, 0, len(raw.Symbols))
	for id := range raw.Symbols {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		for _, rel := range raw.Symbols[id].Relations {
			ri.add(rel.Range)
		}
	}
	ri.finalize()

	pool := newStringPool()

	var symbolBuf, relBuf bytes.Buffer
	for _, id := range ids {
		sym := raw.Symbols[id]
		rels := append([]rawindex.Relation(nil), sym.Relations...)
		sort.Slice(rels, func(i, j int) bool {
			a, b := rels[i], rels[j]
			if a.Kind != b.Kind {
				return a.Kind < b.Kind
			}
			if !a.Range.Less(b.Range) && !b.Range.Less(a.Range) {
				if a.Target != b.Target {
					return a.Target < b.Target
				}
				return a.Ctx < b.Ctx
			}
			return a.Range.Less(b.Range)
		})

		nameOff, nameLen := pool.intern(sym.Name)
		relStart := relBuf.Len() / relEntrySize

		writeU64(&symbolBuf, uint64(sym.ID))
		writeU32(&symbolBuf, nameOff)
		writeU32(&symbolBuf, nameLen)
		writeU32(&symbolBuf, uint32(sym.Kind))
		writeU32(&symbolBuf, uint32(relStart))
		writeU32(&symbolBuf, uint32(len(rels)))

		for _, rel := range rels {
			writeU32(&relBuf, uint32(rel.Kind))
			writeU32(&relBuf, ri.id(rel.Range))
			writeU64(&relBuf, uint64(rel.Target))
			writeU32(&relBuf, uint32(rel.Ctx))
		}
	}

	rngKeys := append([]idx.Range(nil), func() []idx.Range {
		keys := make([]idx.Range, 0, len(raw.Occurrences))
		for rng := range raw.Occurrences {
			keys = append(keys, rng)
		}
		return keys
	}()...)
	sort.Slice(rngKeys, func(i, j int) bool { return rngKeys[i].Less(rngKeys[j]) })

	var occGroupBuf, occEntryBuf bytes.Buffer
	for _, rng := range rngKeys {
		group := append([]rawindex.Occurrence(nil), raw.Occurrences[rng]...)
		sort.Slice(group, func(i, j int) bool {
			if group[i].Target != group[j].Target {
				return group[i].Target < group[j].Target
			}
			return group[i].Ctx < group[j].Ctx
		})

		entryStart := occEntryBuf.Len() / occEntrySize
		writeU32(&occGroupBuf, ri.id(rng))
		writeU32(&occGroupBuf, uint32(entryStart))
		writeU32(&occGroupBuf, uint32(len(group)))

		for _, occ := range group {
			writeU64(&occEntryBuf, uint64(occ.Target))
			writeU32(&occEntryBuf, uint32(occ.Ctx))
		}
	}

	var rangeBuf bytes.Buffer
	for _, r := range ri.ranges {
		writeU32(&rangeBuf, r.Begin)
		writeU32(&rangeBuf, r.End)
	}

	h := header{
		Magic:         magic,
		Version:       version,
		SymbolCount:   uint32(len(ids)),
		OccGroupCount: uint32(len(rngKeys)),
		OccEntryCount: uint32(occEntryBuf.Len() / occEntrySize),
		RelationCount: uint32(relBuf.Len() / relEntrySize),
		RangeCount:    uint32(len(ri.ranges)),
	}
	h.SymbolTableOff = headerSize
	h.OccGroupTableOff = h.SymbolTableOff + uint32(symbolBuf.Len())
	h.OccEntryTableOff = h.OccGroupTableOff + uint32(occGroupBuf.Len())
	h.RelationTableOff = h.OccEntryTableOff + uint32(occEntryBuf.Len())
	h.RangeTableOff = h.RelationTableOff + uint32(relBuf.Len())
	h.StringPoolOff = h.RangeTableOff + uint32(rangeBuf.Len())

	var out bytes.Buffer
	out.Write(h.encode())
	out.Write(symbolBuf.Bytes())
	out.Write(occGroupBuf.Bytes())
	out.Write(occEntryBuf.Bytes())
	out.Write(relBuf.Bytes())
	out.Write(rangeBuf.Bytes())
	out.Write(pool.buf.Bytes())

	data := out.Bytes()
	return data, idx.HashContent(data), nil
}

// DecodeToRawIndex fully materializes data back into a RawIndex, for
// callers (currently only tests) that need the whole structure in memory
// rather than a lazy Reader.
func DecodeToRawIndex(data []byte) (*rawindex.RawIndex, error) {
	r, err := Open(data)
	if err != nil {
		return nil, err
	}

	raw := rawindex.New()
	for i := 0; i < r.SymbolCount(); i++ {
		sv, err := r.SymbolAt(i)
		if err != nil {
			return nil, err
		}
		sym := raw.GetOrCreateSymbol(sv.ID, sv.Name(), sv.Kind)
		rels, err := sv.Relations()
		if err != nil {
			return nil, err
		}
		for _, rv := range rels {
			sym.AddRelation(rawindex.Relation{Kind: rv.Kind, Range: rv.Range, Target: rv.Target, Ctx: rv.Ctx})
		}
	}

	for i := 0; i < r.OccurrenceGroupCount(); i++ {
		occs, err := r.OccurrencesAt(i)
		if err != nil {
			return nil, err
		}
		for _, ov := range occs {
			raw.AddOccurrence(rawindex.Occurrence{Range: ov.Range, Target: ov.Target, Ctx: ov.Ctx})
		}
	}

	return raw, nil
}
