// Package errors provides centralized error handling with category and
// component metadata for structured logging.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"time"
)

// ErrorCategory represents the type of error for better categorization
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryNetwork       ErrorCategory = "network"
	CategoryDatabase      ErrorCategory = "database"
	CategoryHTTP          ErrorCategory = "http-request"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryFileParsing   ErrorCategory = "file-parsing"
	CategoryImageFetch    ErrorCategory = "image-fetch"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryGeneric       ErrorCategory = "generic"
)

// ComponentUnknown is used when the component has not been set.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with additional context and metadata
type EnhancedError struct {
	Err       error          // Original error
	Component string         // Component where the error occurred
	Category  ErrorCategory  // Error category for better grouping
	Context   map[string]any // Additional context data
	Timestamp time.Time      // When the error occurred
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is implements error type checking; two enhanced errors match on category.
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return Is(ee.Err, target)
}

// GetComponent returns the component name.
func (ee *EnhancedError) GetComponent() string {
	if ee.Component == "" {
		return ComponentUnknown
	}
	return ee.Component
}

// GetCategory returns the error category.
func (ee *EnhancedError) GetCategory() string {
	return string(ee.Category)
}

// GetContext returns a copy of the error context.
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.Context == nil {
		return nil
	}
	contextCopy := make(map[string]any, len(ee.Context))
	maps.Copy(contextCopy, ee.Context)
	return contextCopy
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New creates a new error builder wrapping err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf creates a new formatted error with enhanced context
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category for better grouping
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context adds context data to the error
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Build creates the final EnhancedError
func (eb *ErrorBuilder) Build() *EnhancedError {
	category := eb.category
	if category == "" {
		category = CategoryGeneric
	}
	return &EnhancedError{
		Err:       eb.err,
		Component: eb.component,
		Category:  category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
}

// Standard library passthroughs so callers need a single errors import.

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// NewStd creates a plain standard library error without enhancement.
func NewStd(text string) error {
	return stderrors.New(text)
}

// Join wraps errors.Join from the standard library.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
