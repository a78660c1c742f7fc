// Package errors provides structured error handling for Quartz
package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfig represents configuration errors (missing or invalid
	// credentials, unreadable deployment config). Never retried.
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeConnection represents connection-level failures (dropped
	// socket, momentary unavailability). Classified transient.
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeTimeout represents timeout errors. Classified transient.
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeQuery represents a backend rejecting submitted SQL (syntax,
	// permissions, missing object). Never retried.
	ErrorTypeQuery ErrorType = "query"
	// ErrorTypeData represents data conversion/normalization errors
	ErrorTypeData ErrorType = "data"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Detail returns a detail value by key, or nil if absent.
func (e *Error) Detail(key string) interface{} {
	if e.Details == nil {
		return nil
	}
	return e.Details[key]
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
	}
}

// NewQueryError wraps a backend SQL rejection. The offending query text is
// attached so a code-generation repair loop can correct itself.
func NewQueryError(query string, cause error) *Error {
	e := Wrap(cause, ErrorTypeQuery, "query execution failed")
	return e.WithDetail("query", query)
}

// QueryText extracts the offending SQL from a query error, if present.
func QueryText(err error) (string, bool) {
	var e *Error
	if !errors.As(err, &e) || e.Type != ErrorTypeQuery {
		return "", false
	}
	q, ok := e.Detail("query").(string)
	return q, ok
}

// IsTransient reports whether the error is classified as likely to succeed
// on retry. Query and configuration errors are never transient.
func IsTransient(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Type {
	case ErrorTypeConnection, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}
