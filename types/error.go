package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// Collaborator error codes. Transient errors are retried with backoff by the
// adapters; permanent errors degrade to a fallback artifact immediately.
const (
	ErrCollaboratorTransient ErrorCode = "COLLABORATOR_TRANSIENT"
	ErrCollaboratorPermanent ErrorCode = "COLLABORATOR_PERMANENT"
)

// Session and workflow error codes.
const (
	ErrSessionNotFound  ErrorCode = "SESSION_NOT_FOUND"
	ErrSessionCompleted ErrorCode = "SESSION_COMPLETED"
	ErrExecutorFatal    ErrorCode = "EXECUTOR_FATAL"
)

// Rate limiting error codes.
const (
	ErrRateLimitExceeded      ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrRateLimiterUnavailable ErrorCode = "RATE_LIMITER_UNAVAILABLE"
)

// Request error codes.
const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrInternalError  ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// Transient builds a retryable collaborator error.
func Transient(message string, cause error) *Error {
	return &Error{
		Code:      ErrCollaboratorTransient,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// Permanent builds a non-retryable collaborator error.
func Permanent(message string, cause error) *Error {
	return &Error{
		Code:    ErrCollaboratorPermanent,
		Message: message,
		Cause:   cause,
	}
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error, unwrapping as needed.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// HasCode reports whether err carries the given error code.
func HasCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
