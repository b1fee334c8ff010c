package errors

import (
	"errors"
	"fmt"
)

// Common error types used across the flowbench library

var (
	// ErrClosed indicates that an operation was attempted on a closed resource
	ErrClosed = errors.New("resource is closed")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidConfiguration indicates invalid configuration parameters
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrTransport classifies failures of the network side of a transfer:
	// unreachable source, failed read, read timeout.
	ErrTransport = errors.New("transport failure")

	// ErrStorage classifies failures of the persistence side of a transfer:
	// open, write or flush of the sink.
	ErrStorage = errors.New("storage failure")
)

// ValidationError describes a rejected configuration value.
type ValidationError struct {
	Module string
	Field  string
	Value  interface{}
	Reason string
	Hint   string
}

// NewValidationError creates a ValidationError without a hint.
func NewValidationError(module, field string, value interface{}, reason string) *ValidationError {
	return &ValidationError{
		Module: module,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// WithHint attaches a remediation hint and returns the same error for chaining.
func (e *ValidationError) WithHint(hint string) *ValidationError {
	e.Hint = hint
	return e
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: invalid %s=%v (%s)", e.Module, e.Field, e.Value, e.Reason)
	if e.Hint != "" {
		msg += " - " + e.Hint
	}
	return msg
}

// Unwrap makes every ValidationError match ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// OperationError records which module and operation failed, and why.
// Class, when set, is one of ErrTransport or ErrStorage and makes the
// error match it under errors.Is.
type OperationError struct {
	Module    string
	Operation string
	Cause     error
	Context   string
	Class     error
}

// NewOperationError creates an unclassified OperationError.
func NewOperationError(module, operation string, cause error) *OperationError {
	return &OperationError{
		Module:    module,
		Operation: operation,
		Cause:     cause,
	}
}

// TransportError wraps a source failure. Context usually carries the locator.
func TransportError(operation, locator string, cause error) *OperationError {
	return &OperationError{
		Module:    "source",
		Operation: operation,
		Cause:     cause,
		Context:   locator,
		Class:     ErrTransport,
	}
}

// StorageError wraps a sink failure. Context usually carries the path.
func StorageError(operation, path string, cause error) *OperationError {
	return &OperationError{
		Module:    "sink",
		Operation: operation,
		Cause:     cause,
		Context:   path,
		Class:     ErrStorage,
	}
}

// WithContext sets additional context and returns the same error for chaining.
func (e *OperationError) WithContext(context string) *OperationError {
	e.Context = context
	return e
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("%s.%s failed: %v", e.Module, e.Operation, e.Cause)
	if e.Context != "" {
		msg += " (" + e.Context + ")"
	}
	return msg
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the error's class.
func (e *OperationError) Is(target error) bool {
	return e.Class != nil && target == e.Class
}

// IsRetryable returns true if the error indicates a condition that might
// be resolved by retrying the operation
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsValidationError reports whether err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// IsTransport reports whether err is classified as a transport failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsStorage reports whether err is classified as a storage failure.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}
