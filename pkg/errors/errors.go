package errors

import (
	"errors"
	"fmt"
)

// Generic errors shared across layers

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrUnavailable indicates a service is unavailable
	ErrUnavailable = errors.New("service unavailable")
)

// Orchestration errors

var (
	// ErrSessionBusy indicates a turn is already executing for the session
	ErrSessionBusy = errors.New("session busy")

	// ErrSessionClosed indicates the session was closed or expired
	ErrSessionClosed = errors.New("session closed")

	// ErrToolNotFound indicates the dispatcher was given an unregistered tool name
	ErrToolNotFound = errors.New("tool not found")

	// ErrEngineUnavailable indicates the reasoning engine call failed after retries
	ErrEngineUnavailable = errors.New("reasoning engine unavailable")

	// ErrIterationCap indicates the per-turn reasoning/tool cycle cap was exceeded
	ErrIterationCap = errors.New("iteration cap exceeded")

	// ErrRetrievalUnavailable indicates the passage index cannot be queried
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
)

// ValidationError represents a validation error with field-specific details.
// Validation failures are recoverable within a turn: the loop surfaces them
// to the reasoning engine as tool-failure content instead of aborting.
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
