// Package compiledb reads a compile_commands.json-shaped compilation
// database: a map from source path to the compiler argv that built it
// (spec §4.E "index_all() calls add(file) for every entry of the
// compilation database").
package compiledb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Entry is one compile_commands.json record.
type Entry struct {
	Directory string   `json:"directory"`
	File      string   `json:"file"`
	Arguments []string `json:"arguments,omitempty"`
	Command   string   `json:"command,omitempty"`
	Output    string   `json:"output,omitempty"`
}

// Database maps an absolute source path to the argv that compiles it.
type Database struct {
	entries map[string][]string
	files   []string
}

// Load parses the compile_commands.json at path (clang's documented JSON
// Compilation Database format: an array of {directory, file,
// arguments|command} objects).
func Load(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("compiledb: read %s: %w", path, err)
	}

	var raw []Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("compiledb: parse %s: %w", path, err)
	}

	db := &Database{entries: make(map[string][]string, len(raw))}
	for _, e := range raw {
		argv := e.Arguments
		if len(argv) == 0 && e.Command != "" {
			argv = splitCommand(e.Command)
		}

		file := e.File
		if !filepath.IsAbs(file) {
			file = filepath.Join(e.Directory, file)
		}
		file = filepath.Clean(file)

		db.entries[file] = argv
		db.files = append(db.files, file)
	}

	return db, nil
}

// Argv returns the compiler argv recorded for file, or (nil, false) if
// file has no compile command (spec §7 "NotIndexable": no compile command
// for the file").
func (d *Database) Argv(file string) ([]string, bool) {
	argv, ok := d.entries[filepath.Clean(file)]
	return argv, ok
}

// Files returns every source path the database has a command for, in
// file order as they appeared in the JSON array.
func (d *Database) Files() []string {
	out := make([]string, len(d.files))
	copy(out, d.files)
	return out
}

// splitCommand performs a minimal shell-style tokenization of a legacy
// "command" field, honoring quoted strings but not backslash escapes —
// enough for the argv compile_commands.json generators actually emit.
func splitCommand(cmd string) []string {
	var args []string
	var cur strings.Builder
	var quote rune

	flush := func() {
		if cur.Len() > 0 {
			args = append(args, cur.String())
			cur.Reset()
		}
	}

	for _, r := range cmd {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
		case r == ' ' || r == '\t':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()

	return args
}
