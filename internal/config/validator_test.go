package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAndSetDefaults_FillsZeroValues(t *testing.T) {
	cfg := &Config{
		Project: Project{Root: "/proj"},
		Index:   Index{ContextBitWidth: 64, Dir: ".hctxindex"},
	}

	err := ValidateConfig(cfg)
	require.NoError(t, err)

	assert.True(t, cfg.Scheduler.Concurrency > 0)
	assert.Equal(t, "compile_commands.json", cfg.CompileDB.Path)
}

func TestValidateAndSetDefaults_RejectsEmptyRoot(t *testing.T) {
	cfg := &Config{Index: Index{ContextBitWidth: 64, Dir: ".hctxindex"}}
	err := ValidateConfig(cfg)
	assert.Error(t, err)
}

func TestValidateAndSetDefaults_ZeroBitWidthGetsDefaulted(t *testing.T) {
	cfg := &Config{
		Project: Project{Root: "/proj"},
		Index:   Index{ContextBitWidth: 0, Dir: ".hctxindex"},
	}
	err := ValidateConfig(cfg)
	assert.NoError(t, err, "zero bit width is filled by smart defaults, not rejected")
	assert.Equal(t, DefaultContextBitWidth, cfg.Index.ContextBitWidth)
}

func TestValidateAndSetDefaults_RejectsBitWidthNotMultipleOf64(t *testing.T) {
	cfg := &Config{
		Project: Project{Root: "/proj"},
		Index:   Index{ContextBitWidth: 70, Dir: ".hctxindex"},
	}
	err := ValidateConfig(cfg)
	assert.Error(t, err)
}

func TestValidateAndSetDefaults_RejectsNegativeConcurrency(t *testing.T) {
	cfg := &Config{
		Project:   Project{Root: "/proj"},
		Index:     Index{ContextBitWidth: 64, Dir: ".hctxindex"},
		Scheduler: Scheduler{Concurrency: -1},
	}
	err := ValidateConfig(cfg)
	assert.Error(t, err)
}

func TestValidateAndSetDefaults_AcceptsExplicitConcurrency(t *testing.T) {
	cfg := &Config{
		Project:   Project{Root: "/proj"},
		Index:     Index{ContextBitWidth: 64, Dir: ".hctxindex"},
		Scheduler: Scheduler{Concurrency: 3},
	}
	err := ValidateConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Scheduler.Concurrency)
}
