package emitter

import (
	"errors"
	"fmt"
)

// Typed errors for the identification pipeline. Callers branch on category
// with errors.As (or the Is* helpers) rather than string matching.

// ValidationError reports rejected input data: empty slices, mismatched
// column lengths, out-of-range values.
type ValidationError struct {
	Op      string // operation that rejected the input
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid input: %s", e.Op, e.Message)
}

// ConfigError reports invalid parameter sets passed to a constructor.
type ConfigError struct {
	Field   string // offending parameter
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ProcessingError reports a failure inside a pipeline stage. Err carries the
// underlying cause when there is one.
type ProcessingError struct {
	Stage   string
	Message string
	Err     error
}

func (e *ProcessingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// ResourceError reports an unavailable external resource (store, classifier
// backend). These are the only errors worth retrying.
type ResourceError struct {
	Resource string
	Message  string
	Err      error
}

func (e *ResourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s unavailable: %s: %v", e.Resource, e.Message, e.Err)
	}
	return fmt.Sprintf("%s unavailable: %s", e.Resource, e.Message)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConfig reports whether err is (or wraps) a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsProcessing reports whether err is (or wraps) a ProcessingError.
func IsProcessing(err error) bool {
	var pe *ProcessingError
	return errors.As(err, &pe)
}

// IsResource reports whether err is (or wraps) a ResourceError.
func IsResource(err error) bool {
	var re *ResourceError
	return errors.As(err, &re)
}
