// Package idx holds the source-range and identifier primitives shared by
// every other indexing package: byte ranges, symbol ids, and the closed
// symbol/relation-kind enums.
package idx

import "fmt"

// Range is a half-open-on-read byte range into a file's UTF-8 content.
// Contains treats Begin and End as inclusive cursor positions (matching
// clangd/clice convention for cursor-hit tests); Intersects treats the
// range as covering [Begin, End).
type Range struct {
	Begin uint32
	End   uint32
}

// Contains reports whether offset falls within [Begin, End] inclusive.
// The inclusive upper bound matters for a cursor sitting immediately after
// the last character of a token.
func (r Range) Contains(offset uint32) bool {
	return r.Begin <= offset && offset <= r.End
}

// Intersects reports whether two half-open ranges [Begin, End) overlap.
func (r Range) Intersects(other Range) bool {
	return r.Begin < other.End && other.Begin < r.End
}

// Len returns the number of bytes spanned by the range.
func (r Range) Len() uint32 {
	if r.End < r.Begin {
		return 0
	}
	return r.End - r.Begin
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Begin, r.End)
}

// Less orders ranges by Begin then End, used to keep occurrence tables
// sorted for the lookup engine's lower-bound scan.
func (r Range) Less(other Range) bool {
	if r.Begin != other.Begin {
		return r.Begin < other.Begin
	}
	return r.End < other.End
}
