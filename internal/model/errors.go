package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when the requested record is absent.
	ErrNotFound = errors.New("not found")
	// ErrEmptyKey is returned by key-value stores for an empty key.
	ErrEmptyKey = errors.New("empty key")
	// ErrOwnerRequired is returned when a mutation has no owner id.
	ErrOwnerRequired = errors.New("owner id is required")
)

// ErrorCode classifies a remote failure.
type ErrorCode string

const (
	CodeUnavailable        ErrorCode = "unavailable"
	CodeDeadlineExceeded   ErrorCode = "deadline-exceeded"
	CodeResourceExhausted  ErrorCode = "resource-exhausted"
	CodeAborted            ErrorCode = "aborted"
	CodeInternal           ErrorCode = "internal"
	CodeUnknown            ErrorCode = "unknown"
	CodeCancelled          ErrorCode = "cancelled"
	CodeNotFound           ErrorCode = "not-found"
	CodePermissionDenied   ErrorCode = "permission-denied"
	CodeUnauthenticated    ErrorCode = "unauthenticated"
	CodeInvalidArgument    ErrorCode = "invalid-argument"
	CodeFailedPrecondition ErrorCode = "failed-precondition"
	CodeOutOfRange         ErrorCode = "out-of-range"
	CodeUnimplemented      ErrorCode = "unimplemented"
	CodeAlreadyExists      ErrorCode = "already-exists"
)

// RemoteError is a failure reported by a remote collaborator.
type RemoteError struct {
	Code ErrorCode
	Op   string
	Err  error
}

// NewRemoteError wraps err with a classification code.
func NewRemoteError(code ErrorCode, op string, err error) *RemoteError {
	return &RemoteError{Code: code, Op: op, Err: err}
}

func (e *RemoteError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// ValidationError is a local, non-retryable input error.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
