// Package errors defines the structured error taxonomy for the pipeline.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeAuthentication indicates a webhook failed signature verification
	// and was rejected before any state change.
	ErrCodeAuthentication ErrorCode = "authentication_failure"
	// ErrCodeUnknownJob indicates a webhook referenced a handle the registry
	// does not know. Logged and acknowledged, never fatal.
	ErrCodeUnknownJob ErrorCode = "unknown_job"
	// ErrCodeTransientProvider indicates a timeout or 5xx from an outbound
	// provider call; retried with bounded backoff at the call site.
	ErrCodeTransientProvider ErrorCode = "transient_provider"
	// ErrCodeEffectFailed indicates the document side effect failed after the
	// job was already recorded complete.
	ErrCodeEffectFailed ErrorCode = "effect_failed"
	// ErrCodeConflict indicates a concurrent execution already holds the
	// dedupe key, or a unique constraint was violated.
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeInternal indicates an internal error, including storage failures
	// that must surface as 5xx so the provider retries delivery.
	ErrCodeInternal ErrorCode = "internal"
)

// AppError represents a structured application error with a code, message,
// and optional cause. It supports errors.Is and errors.As via Unwrap.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Authentication creates a new authentication-failure error.
func Authentication(message string) *AppError {
	return &AppError{Code: ErrCodeAuthentication, Message: message}
}

// UnknownJob creates a new unknown-job error for the given handle.
func UnknownJob(handle string) *AppError {
	return &AppError{Code: ErrCodeUnknownJob, Message: fmt.Sprintf("no job registered for handle %q", handle)}
}

// TransientProvider wraps a retryable provider failure.
func TransientProvider(err error, message string) *AppError {
	return &AppError{Code: ErrCodeTransientProvider, Message: message, Cause: err}
}

// EffectFailed wraps a document side-effect failure.
func EffectFailed(err error, message string) *AppError {
	return &AppError{Code: ErrCodeEffectFailed, Message: message, Cause: err}
}

// Conflict creates a new Conflict error.
func Conflict(message string) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: message}
}

// Conflictf creates a new Conflict error with formatted message.
func Conflictf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeConflict, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: message}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsAuthentication checks if an error is an authentication failure.
func IsAuthentication(err error) bool { return isCode(err, ErrCodeAuthentication) }

// IsUnknownJob checks if an error is an unknown-job error.
func IsUnknownJob(err error) bool { return isCode(err, ErrCodeUnknownJob) }

// IsTransientProvider checks if an error is a retryable provider failure.
func IsTransientProvider(err error) bool { return isCode(err, ErrCodeTransientProvider) }

// IsEffectFailed checks if an error is an effect-execution failure.
func IsEffectFailed(err error) bool { return isCode(err, ErrCodeEffectFailed) }

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool { return isCode(err, ErrCodeConflict) }

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool { return isCode(err, ErrCodeValidation) }

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool { return isCode(err, ErrCodeNotFound) }

// IsInternal checks if an error is an Internal error.
func IsInternal(err error) bool { return isCode(err, ErrCodeInternal) }

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
