package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKDL_Defaults(t *testing.T) {
	cfg, err := parseKDL("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "compile_commands.json", cfg.CompileDB.Path)
	assert.Equal(t, ".hctxindex", cfg.Index.Dir)
	assert.Equal(t, DefaultContextBitWidth, cfg.Index.ContextBitWidth)
	assert.True(t, cfg.Watch.Enabled)
}

func TestParseKDL_OverridesIndexAndScheduler(t *testing.T) {
	kdlContent := `
index {
    dir ".build/idx"
    context_bit_width 128
}
scheduler {
    concurrency 4
}
watch {
    enabled false
    debounce_ms 500
}
`
	cfg, err := parseKDL(kdlContent)
	require.NoError(t, err)

	assert.Equal(t, ".build/idx", cfg.Index.Dir)
	assert.Equal(t, 128, cfg.Index.ContextBitWidth)
	assert.Equal(t, 4, cfg.Scheduler.Concurrency)
	assert.False(t, cfg.Watch.Enabled)
	assert.Equal(t, 500, cfg.Watch.DebounceMs)
}

func TestParseKDL_CompileDBPath(t *testing.T) {
	cfg, err := parseKDL(`compiledb {
    path "build/compile_commands.json"
}`)
	require.NoError(t, err)
	assert.Equal(t, "build/compile_commands.json", cfg.CompileDB.Path)
}

func TestParseKDL_ProjectNameAndRoot(t *testing.T) {
	cfg, err := parseKDL(`project {
    root "."
    name "widgets"
}`)
	require.NoError(t, err)
	assert.Equal(t, "widgets", cfg.Project.Name)
}

func TestParseKDL_IncludeExclude(t *testing.T) {
	cfg, err := parseKDL(`include "src/**" "include/**"
exclude "**/generated/**"`)
	require.NoError(t, err)

	assert.Equal(t, []string{"src/**", "include/**"}, cfg.Include)
	assert.Equal(t, []string{"**/generated/**"}, cfg.Exclude)
}

func TestParseKDL_InvalidDocumentErrors(t *testing.T) {
	_, err := parseKDL("index { dir ")
	assert.Error(t, err)
}

func TestLoadKDL_MissingFileReturnsNil(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadKDL(dir)
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestLoadKDL_ReadsProjectFile(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, ".hctxindex.kdl"), []byte(`scheduler {
    concurrency 6
}`), 0o644)
	require.NoError(t, err)

	cfg, err := LoadKDL(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 6, cfg.Scheduler.Concurrency)
	assert.True(t, filepath.IsAbs(cfg.Project.Root))
}
