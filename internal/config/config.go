// Package config loads and validates the engine's on-disk configuration:
// where the compilation database and index files live, how much
// concurrency the scheduler gets, the canonical-context bitset width, and
// which files participate in indexing at all (spec §4.D "the registry
// respects the same include/exclude patterns", §5 "fixed maximum
// concurrency C", §9 "bitset width N").
//
// Adapted from the teacher's internal/config/config.go: same Load/
// LoadWithRoot/merge-project-over-base shape, recut from the teacher's
// search/ranking/semantic settings to this module's own fields.
package config

import (
	"os"
	"runtime"
)

// DefaultContextBitWidth is N from spec §9: the number of simultaneously
// live canonical contexts a header index can track. Index.ContextBitWidth
// is only validated: internal/headerindex uses a fixed 64-bit set, and a
// merge past 64 live canonical contexts is logged through
// debug.LogHeaderIndex; no errors.ConfigExceeded is returned.
const DefaultContextBitWidth = 64

// Config is the engine's full runtime configuration.
type Config struct {
	Project   Project
	CompileDB CompileDB
	Index     Index
	Scheduler Scheduler
	Watch     Watch

	// Include/Exclude are doublestar glob patterns restricting which
	// files participate in indexing (spec §4.D); an empty Include means
	// "everything not excluded".
	Include []string
	Exclude []string
}

// Project identifies the root directory configuration was loaded for.
type Project struct {
	Root string
	Name string
}

// CompileDB names where the compilation database lives (spec §6 "a
// compilation database (map from source path to compiler argv)").
type CompileDB struct {
	Path string
}

// Index controls where on-disk index blobs and the registry file live,
// and the canonical-context bitset width (spec §9).
type Index struct {
	Dir             string
	ContextBitWidth int
}

// Scheduler controls the indexing scheduler's bounded concurrency (spec
// §5 "a fixed maximum concurrency C, default: hardware thread count").
type Scheduler struct {
	Concurrency int
}

// Watch controls the filesystem watcher's debounce behavior.
type Watch struct {
	Enabled    bool
	DebounceMs int
}

// defaultExcludes mirrors the teacher's language-agnostic exclusion list,
// trimmed to the directories/files a C/C++ TU registry would actually
// need to ignore (build output, VCS metadata, package managers) —
// the teacher's per-language test-file patterns (Python/JS/Ruby/etc.)
// have no place in a C/C++-only index, so they're dropped rather than
// carried as dead weight.
func defaultExcludes() []string {
	return []string{
		"**/.git/**",
		"**/.*/**",
		"**/build/**",
		"**/out/**",
		"**/bin/**",
		"**/obj/**",
		"**/cmake-build-*/**",
		"**/vendor/**",
		"**/third_party/**",
		"**/node_modules/**",
	}
}

// Default returns a Config with every field set to its documented
// default, rooted at root.
func Default(root string) *Config {
	return &Config{
		Project:   Project{Root: root},
		CompileDB: CompileDB{Path: "compile_commands.json"},
		Index: Index{
			Dir:             ".hctxindex",
			ContextBitWidth: DefaultContextBitWidth,
		},
		Scheduler: Scheduler{Concurrency: runtime.NumCPU()},
		Watch:     Watch{Enabled: true, DebounceMs: 300},
		Include:   []string{},
		Exclude:   defaultExcludes(),
	}
}

// Load reads configuration for the project rooted at root: a global
// `~/.hctxindex.kdl` base overridden by a project-local `.hctxindex.kdl`,
// falling back to Default when neither exists (spec §4, "From callers").
func Load(root string) (*Config, error) {
	cwd := root
	if cwd == "" {
		if wd, err := os.Getwd(); err == nil {
			cwd = wd
		} else {
			cwd = "."
		}
	}

	var base *Config
	if home, err := os.UserHomeDir(); err == nil {
		if cfg, err := LoadKDL(home); err == nil && cfg != nil {
			base = cfg
		}
	}

	project, err := LoadKDL(cwd)
	if err != nil {
		return nil, err
	}

	switch {
	case base != nil && project != nil:
		return merge(base, project), nil
	case project != nil:
		return project, nil
	case base != nil:
		base.Project.Root = cwd
		return base, nil
	default:
		return Default(cwd), nil
	}
}

// merge combines a global base config with a project-local override:
// the project wins field-for-field, but exclude patterns accumulate from
// both (teacher's mergeConfigs "project overrides base, but preserve base
// exclusions").
func merge(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		seen := make(map[string]struct{}, len(base.Exclude)+len(project.Exclude))
		var combined []string
		for _, p := range base.Exclude {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				combined = append(combined, p)
			}
		}
		for _, p := range project.Exclude {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				combined = append(combined, p)
			}
		}
		merged.Exclude = combined
	}

	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}

	return &merged
}
