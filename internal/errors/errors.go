package errors

import (
	"fmt"
)

// StoreError is the structured error type for dirstore.
// It provides rich context for error handling, logging, and user presentation.
type StoreError struct {
	// Code is the unique error code (e.g., "ERR_201_ROOT_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with StoreError.
func (e *StoreError) Is(target error) bool {
	if t, ok := target.(*StoreError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *StoreError) WithDetail(key, value string) *StoreError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *StoreError) WithSuggestion(suggestion string) *StoreError {
	e.Suggestion = suggestion
	return e
}

// New creates a new StoreError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *StoreError {
	return &StoreError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a StoreError from an existing error.
// The error's message becomes the StoreError message.
func Wrap(code string, err error) *StoreError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// RootNotFound creates the fatal connect-time error for a missing root.
func RootNotFound(root string, cause error) *StoreError {
	return New(ErrCodeRootNotFound, fmt.Sprintf("root not found: %s", root), cause).
		WithDetail("root", root)
}

// ReadOnly creates the permission-style error for writes against a
// read-only store.
func ReadOnly(op string) *StoreError {
	return New(ErrCodeReadOnly, fmt.Sprintf("%s not permitted: store is read-only", op), nil).
		WithSuggestion("open the store with read_only: false to modify metadata")
}

// IsFatal checks if an error has fatal severity.
// Fatal errors abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*StoreError); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a StoreError.
// Returns empty string if not a StoreError.
func GetCode(err error) string {
	if se, ok := err.(*StoreError); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a StoreError.
// Returns empty string if not a StoreError.
func GetCategory(err error) Category {
	if se, ok := err.(*StoreError); ok {
		return se.Category
	}
	return ""
}
