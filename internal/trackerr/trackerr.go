// Package trackerr provides a lightweight structured error type (TrackError)
// for category-based classification of step-tracking failures.
package trackerr

import (
	"errors"
	"fmt"
)

// Category classifies a TrackError for handling decisions.
type Category string

const (
	// Capability and platform errors
	CategoryPermission Category = "permission"
	CategoryCapability Category = "capability"
	CategorySensor     Category = "sensor"

	// Storage and input errors
	CategoryPersistence Category = "persistence"
	CategoryInput       Category = "input"

	// Runtime and infrastructure errors
	CategoryRuntime  Category = "runtime"
	CategoryInternal Category = "internal"
)

// Severity indicates how critical an error is.
type Severity string

const (
	SeverityError   Severity = "error"   // Operation failed, state unchanged
	SeverityWarning Severity = "warning" // Continues with degraded functionality
	SeverityInfo    Severity = "info"    // Informational, no impact
)

// TrackError is a structured error with category, retryability, and context.
// Nothing in the tracking subsystem is fatal to the hosting process, so there
// is no fatal severity.
type TrackError struct {
	Category  Category      `json:"category"`
	Severity  Severity      `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for TrackError.
type ContextFields map[string]any

// Error implements the error interface.
func (e *TrackError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling.
func (e *TrackError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error.
func (e *TrackError) WithContext(key string, value any) *TrackError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new TrackError.
func New(category Category, severity Severity, message string) *TrackError {
	return &TrackError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new TrackError that wraps an existing error.
func Wrap(err error, category Category, severity Severity, message string) *TrackError {
	return &TrackError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// IsCategory checks if an error belongs to a specific category.
func IsCategory(err error, category Category) bool {
	var te *TrackError
	if errors.As(err, &te) {
		return te.Category == category
	}
	return false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var te *TrackError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal
// if the error is not a TrackError.
func GetCategory(err error) Category {
	var te *TrackError
	if errors.As(err, &te) {
		return te.Category
	}
	return CategoryInternal
}
