// Package pathutil converts between the engine's internal absolute
// paths and the root-relative paths a CLI user wants to read.
//
// Lookup results and header contexts key everything by absolute path
// internally (spec §4.F, §4.C) to avoid any ambiguity about which file
// a Location names; CLI output converts back to root-relative paths at
// the boundary instead.
//
// Adapted from the teacher's pkg/pathutil/convert.go: ToRelative is
// unchanged, the GrepResult/StandardResult converters (typed against
// the teacher's full-text search result structs) are replaced with
// ToRelativeLocations for this engine's lookup.Location.
package pathutil

import (
	"path/filepath"
	"strings"

	"github.com/standardbeagle/hctxindex/internal/lookup"
)

// ToRelative converts an absolute path to relative based on a root
// directory. Falls back to the original path if conversion fails, the
// path is already relative, or it falls outside rootDir.
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}
	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return absPath
	}
	if strings.HasPrefix(relPath, "..") {
		return absPath
	}
	return relPath
}

// ToRelativeLocations converts every Location's Path in results from
// absolute to root-relative, for display at a CLI/MCP boundary. The
// input slice is left untouched.
func ToRelativeLocations(results []lookup.Location, rootDir string) []lookup.Location {
	if len(results) == 0 {
		return results
	}
	converted := make([]lookup.Location, len(results))
	copy(converted, results)
	for i := range converted {
		converted[i].Path = ToRelative(converted[i].Path, rootDir)
	}
	return converted
}
