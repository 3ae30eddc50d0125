package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the analysis core
var (
	// ErrInsufficientData indicates the requested substance or reaction never
	// appears in the report store at all. This is distinct from a valid zero
	// count for a pair whose entities both exist but never co-occur.
	ErrInsufficientData = errors.New("insufficient data: substance or reaction not present in store")

	// ErrInvalidConfiguration indicates threshold or analysis parameters
	// outside their valid domains. Fails a run before any computation starts.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrNotFound indicates a stored entity was not found.
	ErrNotFound = errors.New("not found")
)

// ValidationError represents a single invalid configuration or input field.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Unwrap ties field-level validation failures to ErrInvalidConfiguration so
// callers can match on the sentinel.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// StoreError wraps a report-store access failure for a specific pair so the
// detection service can apply the configured skip/abort policy.
type StoreError struct {
	Substance string
	Reaction  string
	Err       error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("store error for pair (%s, %s): %v", e.Substance, e.Reaction, e.Err)
}

// Unwrap returns the underlying store failure.
func (e *StoreError) Unwrap() error {
	return e.Err
}
