// Package errors provides standardized error types and helpers for Scribe.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrInternal indicates an internal system error
	ErrInternal = errors.New("internal error")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
)

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "reader", "job", "blob")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseKind classifies a ParseError.
type ParseKind int

const (
	// ParseInvalid is an input that cannot be tokenized at all
	// (invalid UTF-8, malformed XML).
	ParseInvalid ParseKind = iota
	// ParseUnsupportedFormat is a request for a format no reader handles.
	ParseUnsupportedFormat
	// ParseIO is a failure reading the input.
	ParseIO
)

func (k ParseKind) String() string {
	switch k {
	case ParseInvalid:
		return "invalid"
	case ParseUnsupportedFormat:
		return "unsupported format"
	case ParseIO:
		return "io"
	default:
		return fmt.Sprintf("ParseKind(%d)", int(k))
	}
}

// ParseError represents a hard parsing failure. Readers only return it when
// the input cannot be tokenized; unexpected markup is reported as a fidelity
// warning instead.
type ParseError struct {
	Kind    ParseKind // What went wrong
	Format  string    // Format being parsed (e.g., "rst", "fb2")
	Path    string    // File path, if applicable
	Message string    // Error details
	Err     error     // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	switch e.Kind {
	case ParseUnsupportedFormat:
		return ErrUnsupported
	case ParseIO:
		return ErrInternal
	}
	return ErrInvalidInput
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewParse creates an invalid-input ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Kind:    ParseInvalid,
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// NewInvalid creates an invalid-input ParseError wrapping err
func NewInvalid(format, message string, err error) *ParseError {
	return &ParseError{
		Kind:    ParseInvalid,
		Format:  format,
		Message: message,
		Err:     err,
	}
}

// NewUnsupportedFormat creates a ParseError for a format with no reader
func NewUnsupportedFormat(format string) *ParseError {
	return &ParseError{
		Kind:    ParseUnsupportedFormat,
		Format:  format,
		Message: "no reader registered",
	}
}

// NewParseIO creates a ParseError for an input that could not be read
func NewParseIO(format, path string, err error) *ParseError {
	return &ParseError{
		Kind:    ParseIO,
		Format:  format,
		Path:    path,
		Message: err.Error(),
		Err:     err,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
