// Package headerindex implements the spec's component C: merging per-file
// RawIndex parses from different header contexts into one canonical-context
// index, and detecting when two header contexts share the same content
// (spec §3 "HeaderIndex", §4.C "Header Index merge algorithm").
//
// Grounded directly on original_source/include/Index/HeaderIndex.h and
// src/Index/HeaderIndex.cpp; field and method names follow that source
// (translated to Go naming) so the merge algorithm stays recognizable
// against the C++ original.
package headerindex

import (
	"github.com/standardbeagle/hctxindex/internal/debug"
	"github.com/standardbeagle/hctxindex/internal/idx"
	"github.com/standardbeagle/hctxindex/internal/rawindex"
)

// maxContexts bounds how many canonical contexts one HeaderIndex can track
// at once: dependent_elem_states uses a fixed 64-bit bitset per element,
// matching the original's `std::bitset<64>` (its own comment flags this as
// a possible future llvm::BitVector upgrade; not attempted here).
const maxContexts = 64

// HeaderContext names one parse's place in the canonical-context structure:
// which #include pulled it in, its own header-context id, and the
// canonical context id its content was assigned to.
type HeaderContext struct {
	Include uint32
	HctxID  uint32
	CctxID  uint32
}

// HeaderIndex accumulates RawIndex merges across every header context seen
// for a set of files, tracking which elements are shared (independent) and
// which vary by canonical context (dependent).
type HeaderIndex struct {
	rawindex.RawIndex

	Merged bool

	MaxHctxID uint32
	MaxCctxID uint32

	erasedHctxIDs []uint32
	erasedCctxIDs []uint32

	// HeaderContexts maps a source path to every header context recorded
	// for it (a header may be reached through more than one #include).
	HeaderContexts map[string][]HeaderContext

	// CctxHctxRefs tracks, for each canonical context id, how many header
	// contexts currently reference it: set to 1 on allocation and
	// incremented each time Merge reuses the canonical context.
	CctxHctxRefs []uint32

	// CctxElementRefs counts, for each canonical context id, how many
	// dependent relation/occurrence records participate in it.
	CctxElementRefs []uint32

	// DependentElemStates holds one bitset per dependent element; bit i
	// set means the element is present in canonical context i.
	DependentElemStates []uint64

	// IndependentElemStates holds one set per independent element: the
	// header-context ids where it was seen.
	IndependentElemStates []map[uint32]struct{}
}

// New returns an empty HeaderIndex.
func New() *HeaderIndex {
	return &HeaderIndex{
		RawIndex:       *rawindex.New(),
		HeaderContexts: make(map[string][]HeaderContext),
	}
}

// FileCount returns the number of distinct source paths with at least one
// recorded header context.
func (h *HeaderIndex) FileCount() int { return len(h.HeaderContexts) }

// HeaderContextCount returns the number of currently active header
// contexts (allocated ids minus erased ones).
func (h *HeaderIndex) HeaderContextCount() uint32 {
	return h.MaxHctxID - uint32(len(h.erasedHctxIDs))
}

// CanonicalContextCount returns the number of currently active canonical
// contexts.
func (h *HeaderIndex) CanonicalContextCount() uint32 {
	return h.MaxCctxID - uint32(len(h.erasedCctxIDs))
}

// IsSingleHeaderContext reports whether this index holds exactly one live
// header context — the common case that lets lookup skip disambiguation
// entirely (spec §4.F "fast path").
func (h *HeaderIndex) IsSingleHeaderContext() bool {
	return h.MaxHctxID == 1 && len(h.erasedHctxIDs) == 0
}

// ErasedFlag returns a bitmap with every bit set except the ones
// corresponding to erased canonical context ids.
func (h *HeaderIndex) ErasedFlag() uint64 {
	flag := ^uint64(0)
	for _, id := range h.erasedCctxIDs {
		if id < maxContexts {
			flag &^= 1 << id
		}
	}
	return flag
}

// AllocHctxID returns a fresh header-context id, reusing an erased one
// when available.
func (h *HeaderIndex) AllocHctxID() uint32 {
	if len(h.erasedHctxIDs) == 0 {
		id := h.MaxHctxID
		h.MaxHctxID++
		return id
	}
	id := h.erasedHctxIDs[0]
	h.erasedHctxIDs = h.erasedHctxIDs[1:]
	return id
}

// AllocCctxID returns a fresh canonical-context id, reusing an erased one
// when available and (re)initializing its ref counters.
func (h *HeaderIndex) AllocCctxID() uint32 {
	if len(h.erasedCctxIDs) == 0 {
		id := h.MaxCctxID
		h.MaxCctxID++
		h.CctxHctxRefs = append(h.CctxHctxRefs, 1)
		h.CctxElementRefs = append(h.CctxElementRefs, 0)
		if h.MaxCctxID > maxContexts {
			debug.LogHeaderIndex("canonical context count %d exceeds %d-bit budget", h.MaxCctxID, maxContexts)
		}
		return id
	}
	id := h.erasedCctxIDs[0]
	h.erasedCctxIDs = h.erasedCctxIDs[1:]
	h.CctxHctxRefs[id] = 1
	h.CctxElementRefs[id] = 0
	return id
}

// AllocDependentElemID returns a fresh dependent-element id with a
// zeroed bitmap.
func (h *HeaderIndex) AllocDependentElemID() uint32 {
	id := uint32(len(h.DependentElemStates))
	h.DependentElemStates = append(h.DependentElemStates, 0)
	return id
}

// AllocIndependentElemID returns a fresh independent-element id with an
// empty header-context set.
func (h *HeaderIndex) AllocIndependentElemID() uint32 {
	id := uint32(len(h.IndependentElemStates))
	h.IndependentElemStates = append(h.IndependentElemStates, make(map[uint32]struct{}))
	return id
}

// AddContext registers a new header context for path without merging any
// content into it — used when a parse is known a priori to be the first
// and only content seen for this path.
func (h *HeaderIndex) AddContext(path string, include uint32) HeaderContext {
	ctx := HeaderContext{
		Include: include,
		CctxID:  h.AllocCctxID(),
		HctxID:  h.AllocHctxID(),
	}
	h.HeaderContexts[path] = append(h.HeaderContexts[path], ctx)
	return ctx
}

// Remove releases every header context recorded for path: their hctx ids
// go back to the free list, any canonical context whose ref count drops to
// zero is released too, and every element state that referenced a released
// id is cleared (spec §4.C "remove(path)").
func (h *HeaderIndex) Remove(path string) {
	contexts, ok := h.HeaderContexts[path]
	if !ok {
		return
	}

	var erasedHctx []uint32

	for _, ctx := range contexts {
		erasedHctx = append(erasedHctx, ctx.HctxID)
		h.erasedHctxIDs = append(h.erasedHctxIDs, ctx.HctxID)

		ref := h.CctxHctxRefs[ctx.CctxID]
		if ref > 0 {
			ref--
		}
		h.CctxHctxRefs[ctx.CctxID] = ref
		if ref == 0 {
			h.erasedCctxIDs = append(h.erasedCctxIDs, ctx.CctxID)
			h.CctxElementRefs[ctx.CctxID] = 0
		}
	}

	delete(h.HeaderContexts, path)

	for i := range h.IndependentElemStates {
		for _, hctxID := range erasedHctx {
			delete(h.IndependentElemStates[i], hctxID)
		}
	}

	flag := h.ErasedFlag()
	for i := range h.DependentElemStates {
		h.DependentElemStates[i] &= flag
	}
}

// mergeElements folds raw's symbols and occurrences into self, invoking
// updateContext for every element touched — exactly
// original_source/src/Index/HeaderIndex.cpp's merge_elements, translated to
// a closure over slice/map indices instead of C++ references.
func mergeElements(self *rawindex.RawIndex, raw *rawindex.RawIndex, updateContext func(ctx *idx.Contextual, isDependent, isNew bool)) {
	for id, symbol := range raw.Symbols {
		selfSym, exists := self.Symbols[id]
		if !exists {
			self.Symbols[id] = symbol
			for i := range symbol.Relations {
				rel := &symbol.Relations[i]
				updateContext(&rel.Ctx, rel.Ctx.IsDependent(), true)
			}
			continue
		}

		for _, rel := range symbol.Relations {
			_, inserted, index := selfSym.AddRelation(rel)
			updateContext(&selfSym.Relations[index].Ctx, rel.Ctx.IsDependent(), inserted)
		}
	}

	for rng, group := range raw.Occurrences {
		selfGroup, exists := self.Occurrences[rng]
		if !exists {
			self.Occurrences[rng] = group
			for i := range group {
				updateContext(&group[i].Ctx, group[i].Ctx.IsDependent(), true)
			}
			continue
		}

		for _, occ := range group {
			found := -1
			for i, existing := range selfGroup {
				if existing.Target == occ.Target {
					found = i
					break
				}
			}
			if found >= 0 {
				updateContext(&selfGroup[found].Ctx, occ.Ctx.IsDependent(), false)
			} else {
				selfGroup = append(selfGroup, occ)
				self.Occurrences[rng] = selfGroup
				updateContext(&selfGroup[len(selfGroup)-1].Ctx, occ.Ctx.IsDependent(), true)
			}
		}
	}
}

// Merge folds one freshly built RawIndex (raw's single parse of path,
// reached via the #include at include) into self, returning the
// HeaderContext assigned to it. It implements spec §4.C's witness-
// intersection algorithm verbatim: a new canonical context is allocated
// only when the merge can't prove this parse's dependent-element set
// equals an existing canonical context's.
func (h *HeaderIndex) Merge(path string, include uint32, raw *rawindex.RawIndex) HeaderContext {
	newHctxID := h.AllocHctxID()

	flag := h.ErasedFlag()
	isNewCctx := false
	const noCctx = ^uint32(0)
	newCctxID := noCctx

	var visitedElemIDs []uint32
	oldElementsRefs := uint32(0)

	updateContext := func(ctx *idx.Contextual, isDependent, isNew bool) {
		if isNew {
			// A brand-new element forces a new canonical context: no
			// existing cctx could have witnessed it.
			isNewCctx = true
			if newCctxID == noCctx {
				newCctxID = h.AllocCctxID()
			}

			var newElemID uint32
			if isDependent {
				oldElementsRefs++
				newElemID = h.AllocDependentElemID()
				if newCctxID < maxContexts {
					h.DependentElemStates[newElemID] |= 1 << newCctxID
				}
			} else {
				newElemID = h.AllocIndependentElemID()
				h.IndependentElemStates[newElemID][newHctxID] = struct{}{}
			}
			*ctx = idx.NewContextual(newElemID, isDependent)
			return
		}

		if ctx.IsDependent() {
			oldElementsRefs++
			if isNewCctx {
				if newCctxID < maxContexts {
					h.DependentElemStates[ctx.Offset()] |= 1 << newCctxID
				}
			} else {
				flag &= h.DependentElemStates[ctx.Offset()]
				visitedElemIDs = append(visitedElemIDs, ctx.Offset())
				if flag == 0 {
					isNewCctx = true
				}
			}
		} else {
			h.IndependentElemStates[ctx.Offset()][newHctxID] = struct{}{}
		}
	}

	mergeElements(&h.RawIndex, raw, updateContext)

	if !isNewCctx {
		for i := uint32(0); i < h.MaxCctxID; i++ {
			if flag&(1<<i) == 0 {
				continue
			}
			if h.CctxElementRefs[i] == oldElementsRefs {
				newCctxID = i
				h.CctxHctxRefs[i]++
				break
			}
		}
	}

	if newCctxID == noCctx {
		newCctxID = h.AllocCctxID()
		isNewCctx = true
	}

	if isNewCctx {
		for _, id := range visitedElemIDs {
			h.DependentElemStates[id] |= 1 << newCctxID
		}
		h.CctxElementRefs[newCctxID] = oldElementsRefs
	}

	ctx := HeaderContext{Include: include, HctxID: newHctxID, CctxID: newCctxID}
	h.HeaderContexts[path] = append(h.HeaderContexts[path], ctx)
	return ctx
}
