package config

import (
	"errors"
	"fmt"
	"runtime"

	hcxerrors "github.com/standardbeagle/hctxindex/internal/errors"
)

// Validator validates configuration and fills in smart defaults for
// fields callers left unset.
type Validator struct{}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates cfg and applies smart defaults.
// Returns a *hcxerrors.ConfigError on the first invalid section.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return hcxerrors.NewConfigError("project", "", err)
	}

	v.setSmartDefaults(cfg)

	if err := v.validateIndexConfig(&cfg.Index); err != nil {
		return hcxerrors.NewConfigError("index", fmt.Sprint(cfg.Index.ContextBitWidth), err)
	}

	if err := v.validateSchedulerConfig(&cfg.Scheduler); err != nil {
		return hcxerrors.NewConfigError("scheduler", fmt.Sprint(cfg.Scheduler.Concurrency), err)
	}

	return nil
}

// validateProjectConfig validates project configuration.
func (v *Validator) validateProjectConfig(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}
	return nil
}

// validateIndexConfig validates the index storage and bitset-width
// settings. Width itself is bounded here only at load time (must be a
// positive multiple of 64). internal/headerindex does not read it: its
// canonical-context set is a single uint64, and going past 64 live
// contexts there is logged, not reported as errors.ConfigExceeded.
func (v *Validator) validateIndexConfig(index *Index) error {
	if index.Dir == "" {
		return errors.New("index dir cannot be empty")
	}

	if index.ContextBitWidth <= 0 {
		return fmt.Errorf("context bit width must be positive, got %d", index.ContextBitWidth)
	}

	if index.ContextBitWidth%64 != 0 {
		return fmt.Errorf("context bit width must be a multiple of 64, got %d", index.ContextBitWidth)
	}

	return nil
}

// validateSchedulerConfig validates the scheduler's concurrency bound.
func (v *Validator) validateSchedulerConfig(sched *Scheduler) error {
	if sched.Concurrency < 0 {
		return fmt.Errorf("concurrency cannot be negative, got %d", sched.Concurrency)
	}
	return nil
}

// setSmartDefaults fills in fields callers left at their zero value.
func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Scheduler.Concurrency == 0 {
		cfg.Scheduler.Concurrency = max(1, runtime.NumCPU())
	}

	if cfg.Index.ContextBitWidth == 0 {
		cfg.Index.ContextBitWidth = DefaultContextBitWidth
	}

	if cfg.Index.Dir == "" {
		cfg.Index.Dir = ".hctxindex"
	}

	if cfg.CompileDB.Path == "" {
		cfg.CompileDB.Path = "compile_commands.json"
	}
}

// ValidateConfig is a convenience function for quick validation.
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	return validator.ValidateAndSetDefaults(cfg)
}
