package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMerge_ExclusionsAccumulate(t *testing.T) {
	base := &Config{
		Exclude: []string{"**/node_modules/**", "**/vendor/**"},
	}
	project := &Config{
		Project: Project{Root: "/proj"},
		Exclude: []string{"**/dist/**", "**/vendor/**"},
	}

	merged := merge(base, project)

	assert.Contains(t, merged.Exclude, "**/node_modules/**")
	assert.Contains(t, merged.Exclude, "**/vendor/**")
	assert.Contains(t, merged.Exclude, "**/dist/**")
	assert.Len(t, merged.Exclude, 3)
}

func TestMerge_ProjectFieldsWin(t *testing.T) {
	base := &Config{
		Scheduler: Scheduler{Concurrency: 2},
		Index:     Index{Dir: ".base-index", ContextBitWidth: 64},
	}
	project := &Config{
		Project:   Project{Root: "/proj"},
		Scheduler: Scheduler{Concurrency: 8},
		Index:     Index{Dir: ".hctxindex", ContextBitWidth: 128},
	}

	merged := merge(base, project)

	assert.Equal(t, 8, merged.Scheduler.Concurrency)
	assert.Equal(t, ".hctxindex", merged.Index.Dir)
	assert.Equal(t, 128, merged.Index.ContextBitWidth)
	assert.Equal(t, "/proj", merged.Project.Root)
}

func TestMerge_IncludeFallsBackToBase(t *testing.T) {
	base := &Config{Include: []string{"src/**"}}
	project := &Config{Project: Project{Root: "/proj"}}

	merged := merge(base, project)

	assert.Equal(t, []string{"src/**"}, merged.Include)
}

func TestMerge_ProjectIncludeOverridesBase(t *testing.T) {
	base := &Config{Include: []string{"src/**"}}
	project := &Config{
		Project: Project{Root: "/proj"},
		Include: []string{"lib/**"},
	}

	merged := merge(base, project)

	assert.Equal(t, []string{"lib/**"}, merged.Include)
}

func TestDefault_SetsDocumentedDefaults(t *testing.T) {
	cfg := Default("/proj")

	assert.Equal(t, "/proj", cfg.Project.Root)
	assert.Equal(t, "compile_commands.json", cfg.CompileDB.Path)
	assert.Equal(t, ".hctxindex", cfg.Index.Dir)
	assert.Equal(t, DefaultContextBitWidth, cfg.Index.ContextBitWidth)
	assert.True(t, cfg.Scheduler.Concurrency > 0)
	assert.True(t, cfg.Watch.Enabled)
	assert.Contains(t, cfg.Exclude, "**/.git/**")
}
