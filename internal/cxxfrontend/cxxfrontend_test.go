package cxxfrontend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/hctxindex/internal/headerindex"
	"github.com/standardbeagle/hctxindex/internal/rawindex"
)

func acceptAll(string) bool { return true }

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestProvider_ParsesFunctionDefinition(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "main.cpp", "int add(int a, int b) {\n  return a + b;\n}\n")

	p := New()
	tu, err := p.Parse(main, nil, acceptAll)
	require.NoError(t, err)

	require.Len(t, tu.Occasions, 1)
	assert.Equal(t, "add", tu.Occasions[0].Subject.Name)
	assert.Equal(t, main, tu.Occasions[0].Subject.File)
}

func TestProvider_ExpandsHeaderInclude(t *testing.T) {
	dir := t.TempDir()
	header := writeFile(t, dir, "a.h", "int helper();\n")
	main := writeFile(t, dir, "main.cpp", "#include \"a.h\"\nint caller() {\n  return helper();\n}\n")

	p := New()
	tu, err := p.Parse(main, nil, acceptAll)
	require.NoError(t, err)

	require.Len(t, tu.Includes, 1)
	assert.Equal(t, main, tu.Includes[0].FromFile)
	assert.Equal(t, header, tu.Includes[0].ToFile)
	assert.False(t, tu.Includes[0].GuardedAgainstReparse)

	var sawHeaderDecl, sawCallerDecl bool
	for _, occ := range tu.Occasions {
		if occ.Subject.File == header && occ.Subject.Name == "helper" {
			sawHeaderDecl = true
		}
		if occ.Subject.File == main && occ.Subject.Name == "caller" {
			sawCallerDecl = true
		}
	}
	assert.True(t, sawHeaderDecl, "expected a declaration from the included header")
	assert.True(t, sawCallerDecl, "expected a declaration from the main file")

	require.Len(t, tu.CallSites, 1)
	assert.Equal(t, "caller", tu.CallSites[0].Caller.Name)
	assert.Equal(t, "helper", tu.CallSites[0].Callee.Name)
}

func TestProvider_SkipsDuplicateIncludeOnSecondChain(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "common.h", "int shared_fn();\n")
	main := writeFile(t, dir, "main.cpp", "#include \"common.h\"\n#include \"common.h\"\nint use() { return shared_fn(); }\n")

	p := New()
	tu, err := p.Parse(main, nil, acceptAll)
	require.NoError(t, err)

	require.Len(t, tu.Includes, 2)
	assert.False(t, tu.Includes[0].GuardedAgainstReparse)
	assert.True(t, tu.Includes[1].GuardedAgainstReparse)
}

func TestProvider_NamespaceAndClassScoping(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "main.cpp", `namespace ns {
class Widget {
  int value;
  int get() { return value; }
};
}
`)

	p := New()
	tu, err := p.Parse(main, nil, acceptAll)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, occ := range tu.Occasions {
		names[occ.Subject.Name] = true
	}
	assert.True(t, names["ns"])
	assert.True(t, names["Widget"])
	assert.True(t, names["value"])
	assert.True(t, names["get"])
}

// TestProvider_IfdefGatedDeclarationKeepsDistinctCanonicalContexts exercises
// an #ifdef-gated declaration across three parses of the same header under
// changing -D flags and feeds each resulting RawIndex through
// internal/headerindex's merge, the same pipeline internal/engine wires:
// parse 1 (macro defined, R=c) allocates a fresh canonical context; parse 2
// (macro undefined, a strict content subset of parse 1, R⊂c) must NOT reuse
// it; parse 3 (macro defined again, equal to parse 1's content) must reuse
// parse 1's context. This is invariant I4.
func TestProvider_IfdefGatedDeclarationKeepsDistinctCanonicalContexts(t *testing.T) {
	dir := t.TempDir()
	header := writeFile(t, dir, "feature.h",
		"#ifdef WITH_FEATURE\nint feature_only();\n#endif\nint always_present();\n")
	main := writeFile(t, dir, "main.cpp", "#include \"feature.h\"\n")

	p := New()
	builder := rawindex.NewBuilder(acceptAll)
	hx := headerindex.New()

	parse := func(argv []string) *rawindex.RawIndex {
		t.Helper()
		tu, err := p.Parse(main, argv, acceptAll)
		require.NoError(t, err)
		perFile := builder.Build(tu)
		raw, ok := perFile[header]
		require.True(t, ok, "expected occasions recorded against the header")
		return raw
	}

	raw1 := parse([]string{"clang++", "-DWITH_FEATURE"})
	ctx1 := hx.Merge(header, 0, raw1)

	raw2 := parse(nil)
	ctx2 := hx.Merge(header, 0, raw2)

	raw3 := parse([]string{"clang++", "-DWITH_FEATURE"})
	ctx3 := hx.Merge(header, 0, raw3)

	assert.NotEqual(t, ctx1.CctxID, ctx2.CctxID,
		"a strict content subset (macro undefined) must not reuse the superset parse's canonical context")
	assert.Equal(t, ctx1.CctxID, ctx3.CctxID,
		"re-parsing with the same macro state must reuse the earlier canonical context")
}

func TestProvider_InterestFilterExcludesHeader(t *testing.T) {
	dir := t.TempDir()
	header := writeFile(t, dir, "excluded.h", "int skip_me();\n")
	main := writeFile(t, dir, "main.cpp", "#include \"excluded.h\"\nint use() { return skip_me(); }\n")

	interest := func(file string) bool { return file != header }

	p := New()
	tu, err := p.Parse(main, nil, interest)
	require.NoError(t, err)

	for _, occ := range tu.Occasions {
		assert.NotEqual(t, header, occ.Subject.File)
	}
}
