package lookup

import (
	"github.com/hbollon/go-edlib"
	"github.com/surgebase/porter2"
)

// collisionThreshold is the Jaro-Winkler similarity above which two symbol
// names are treated as "close enough" to be the same logical name when a
// SymbolID collision forces a name-based tiebreak (spec §3 "collisions are
// tolerated: callers disambiguate by pairing a SymbolID with the symbol's
// name"). Matches the teacher's FuzzyMatcher default
// (internal/semantic/fuzzy_matcher.go's NewFuzzyMatcher default of 0.80).
const collisionThreshold = 0.80

// sameSymbolName reports whether got is an acceptable match for want when
// resolving a SymbolID that collided across two distinct canonical texts.
// An exact match always succeeds; otherwise the names are compared both
// verbatim and after Porter2 stemming (so "connect"/"connection" style
// near-misses from macro expansion or overload naming still match),
// falling back to Jaro-Winkler similarity (grounded on
// internal/semantic/fuzzy_matcher.go and internal/semantic/stemmer.go).
func sameSymbolName(want, got string) bool {
	if want == got {
		return true
	}
	if want == "" || got == "" {
		return false
	}
	if porter2.Stem(want) == porter2.Stem(got) {
		return true
	}
	score, err := edlib.StringsSimilarity(want, got, edlib.JaroWinkler)
	if err != nil {
		return false
	}
	return float64(score) >= collisionThreshold
}
