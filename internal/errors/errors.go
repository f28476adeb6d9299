// Package errors implements the spec's §7 error taxonomy: a closed set of
// named error kinds, each carrying enough context to log or retry, plus a
// propagation policy (every kind but ConfigExceeded is a recoverable
// no-op).
//
// Adapted from the teacher's internal/errors/errors.go — same typed
// ErrorType enum + context-carrying struct implementing Unwrap — recut to
// this module's own kinds instead of the teacher's file-indexing ones.
package errors

import (
	"fmt"
	"time"
)

// ErrorType names one of the kinds spec §7 defines.
type ErrorType string

const (
	// NotIndexable: no compile command for the file.
	NotIndexable ErrorType = "not_indexable"
	// CompileFailed: the external compiler refused the TU.
	CompileFailed ErrorType = "compile_failed"
	// IoError: a transient disk error.
	IoError ErrorType = "io_error"
	// RegistryCorrupt: index.json failed to parse at startup.
	RegistryCorrupt ErrorType = "registry_corrupt"
	// ConfigExceeded: the live canonical-context count exceeds the
	// configured bitset width N. The only fatal kind (spec §7).
	ConfigExceeded ErrorType = "config_exceeded"
	// Cancelled: a task observed its own cancellation; never surfaced
	// upstream (spec §7 "not surfaced upstream").
	Cancelled ErrorType = "cancelled"
)

// Recoverable reports whether an error of this kind should be logged and
// treated as a no-op rather than propagated as fatal (spec §7
// "Propagation policy: recoverable kinds are logged and the affected
// operation becomes a no-op; only ConfigExceeded is fatal").
func (t ErrorType) Recoverable() bool {
	return t != ConfigExceeded
}

// IndexingError is the context-carrying error type returned by indexing
// operations across this module: which file, what the engine was doing,
// and why.
type IndexingError struct {
	Type       ErrorType
	File       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// New creates an IndexingError of kind t for file, wrapping err.
func New(t ErrorType, file, op string, err error) *IndexingError {
	return &IndexingError{
		Type:       t,
		File:       file,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func (e *IndexingError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s failed for %s: %v", e.Type, e.Operation, e.File, e.Underlying)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Type, e.Operation, e.Underlying)
}

func (e *IndexingError) Unwrap() error { return e.Underlying }

// Recoverable reports whether this specific error's kind is recoverable.
func (e *IndexingError) Recoverable() bool { return e.Type.Recoverable() }

// NotIndexableError reports a file with no compile command.
func NotIndexableError(file string) *IndexingError {
	return New(NotIndexable, file, "add", fmt.Errorf("no compile command"))
}

// CompileFailedError wraps a compiler failure for file.
func CompileFailedError(file string, err error) *IndexingError {
	return New(CompileFailed, file, "compile", err)
}

// IoErrorFor wraps a transient disk error encountered during op on file.
func IoErrorFor(file, op string, err error) *IndexingError {
	return New(IoError, file, op, err)
}

// RegistryCorruptError wraps a registry-file parse failure.
func RegistryCorruptError(path string, err error) *IndexingError {
	return New(RegistryCorrupt, path, "load_registry", err)
}

// ConfigExceededError reports that live contains live canonical contexts
// against a bitset width of width — the one fatal kind.
func ConfigExceededError(live, width int) *IndexingError {
	return New(ConfigExceeded, "", "merge",
		fmt.Errorf("%d live canonical contexts exceeds bitset width %d", live, width))
}

// ConfigError reports a bad configuration value; distinct from
// ConfigExceeded (a runtime condition), this is a load-time validation
// failure.
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
}

// NewConfigError creates a ConfigError for field carrying value.
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{Field: field, Value: value, Underlying: err}
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config error for field %s: %v", e.Field, e.Underlying)
	}
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

func (e *ConfigError) Unwrap() error { return e.Underlying }

// MultiError aggregates zero or more errors, e.g. from validating several
// independent config sections at once.
type MultiError struct {
	Errors []error
}

// NewMultiError filters out nil errors and wraps what's left.
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

func (e *MultiError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	default:
		return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
	}
}

func (e *MultiError) Unwrap() []error { return e.Errors }
