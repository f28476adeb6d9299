package idx

import "github.com/cespare/xxhash/v2"

// SymbolID is a 64-bit hash of a canonicalized textual symbol reference
// (a "universal symbol reference" in clice's terms). Two declarations that
// the front-end considers the same canonical declaration must hash to the
// same SymbolID. Collisions are tolerated: callers disambiguate by pairing
// a SymbolID with the symbol's name (see lookup.sameSymbolName).
type SymbolID uint64

// Zero is the sentinel used for self-contained relations (a declaration of
// the symbol itself has no target).
const Zero SymbolID = 0

// HashSymbolName derives a SymbolID from a canonical textual form of a
// declaration. The input is expected to already be the canonicalized
// representation (e.g. a USR-like string produced by an ast.Provider);
// this function only performs the mixing step.
func HashSymbolName(canonical string) SymbolID {
	if canonical == "" {
		return Zero
	}
	return SymbolID(xxhash.Sum64String(canonical))
}

// ContentHash is the 128-bit identity of a serialized blob (§4.G). It is
// built from two independent 64-bit xxhash digests since the dependency
// set carries no native 128-bit hash.
type ContentHash struct {
	Lo uint64
	Hi uint64
}

// HashContent computes the ContentHash of a byte stream.
func HashContent(data []byte) ContentHash {
	d1 := xxhash.New()
	d1.Write(data)
	d2 := xxhash.New()
	d2.Write([]byte{0xC1, 0xCE}) // distinct seed prefix for the second digest
	d2.Write(data)
	return ContentHash{Lo: d1.Sum64(), Hi: d2.Sum64()}
}

func (c ContentHash) IsZero() bool {
	return c.Lo == 0 && c.Hi == 0
}
