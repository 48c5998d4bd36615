package utils

import (
	"errors"
	"fmt"
)

// Error kinds shared across packages. Wrap them with NewAppError and test with errors.Is.
var (
	// ErrInvalidInput marks malformed records, empty or single-class datasets and similar caller mistakes.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidConfig marks unsupported settings such as split fractions outside [0,1).
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNotTrained is returned when inference is attempted before Train or Load.
	ErrNotTrained = errors.New("model not trained or loaded")
	// ErrSchemaMismatch flags a feature vector that does not satisfy the model's feature list.
	ErrSchemaMismatch = errors.New("feature schema mismatch")
	// ErrArtifactNotFound is returned by artifact stores when a key is absent.
	ErrArtifactNotFound = errors.New("artifact not found")
)

// AppError wraps an operation, human-facing message, and underlying error.
type AppError struct {
	Op  string
	Msg string
	Err error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// InputError reports an ErrInvalidInput failure for op.
func InputError(op, format string, args ...any) error {
	return &AppError{Op: op, Msg: fmt.Sprintf(format, args...), Err: ErrInvalidInput}
}

// ConfigError reports an ErrInvalidConfig failure for op.
func ConfigError(op, format string, args ...any) error {
	return &AppError{Op: op, Msg: fmt.Sprintf(format, args...), Err: ErrInvalidConfig}
}
