package entity

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the work-log and batch verification cores.
// Typed errors match their sentinel through errors.Is.
var (
	// ErrValidation is a local, pre-network failure that blocks submission
	ErrValidation = errors.New("validation failed")

	// ErrNetwork is a transient transport or server failure; the caller may retry
	ErrNetwork = errors.New("network failure")

	// ErrConflict is a business-rule violation that retrying will not fix
	ErrConflict = errors.New("conflict")

	// ErrNotFound marks an absent resource; for batch lookups this is a valid outcome
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied is returned when the caller lacks edit permission
	ErrPermissionDenied = errors.New("permission denied")
)

// ValidationError describes an invalid field value
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// NetworkError wraps a failed request to the backend
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: backend returned status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// Retryable is always true; retries are a caller policy
func (e *NetworkError) Retryable() bool {
	return true
}

// NewNetworkError creates a new NetworkError
func NewNetworkError(op string, statusCode int, err error) *NetworkError {
	return &NetworkError{Op: op, StatusCode: statusCode, Err: err}
}

// ConflictError reports a business-rule violation
type ConflictError struct {
	Resource string
	Message  string
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Resource, e.Message)
}

// Is implements errors.Is support
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// NewConflictError creates a new ConflictError
func NewConflictError(resource, message string) *ConflictError {
	return &ConflictError{Resource: resource, Message: message}
}

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// IsRetryable reports whether err is a transient failure worth re-invoking
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork)
}
