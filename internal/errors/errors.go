package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of client error.
type ErrorCode string

const (
	// ErrCodeNetwork indicates no response was received (timeout, DNS, connection refused).
	ErrCodeNetwork ErrorCode = "network"
	// ErrCodeRequest indicates the backend answered with a non-2xx status.
	ErrCodeRequest ErrorCode = "request"
	// ErrCodeValidation indicates a client-side precondition or input check failed.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeStorage indicates a persistence failure (serialize, deserialize, backend I/O).
	ErrCodeStorage ErrorCode = "storage"
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeInternal indicates an unexpected client failure.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// AppError represents a structured error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
	// Status is the HTTP status for request errors (0 otherwise)
	Status int
	// Details carries the parsed error payload returned by the backend, if any.
	Details map[string]any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Network creates a new Network error wrapping the transport failure.
func Network(cause error) *AppError {
	return &AppError{
		Code:    ErrCodeNetwork,
		Message: "Network error",
		Cause:   cause,
	}
}

// Request creates a new Request error for a non-2xx response.
func Request(status int, message string, details map[string]any) *AppError {
	return &AppError{
		Code:    ErrCodeRequest,
		Message: message,
		Status:  status,
		Details: details,
	}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

// Validationf creates a new Validation error with formatted message.
func Validationf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
	}
}

// Storage wraps a persistence failure.
func Storage(cause error, message string) *AppError {
	return &AppError{
		Code:    ErrCodeStorage,
		Message: message,
		Cause:   cause,
	}
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: message,
	}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNetwork checks if an error is a Network error.
func IsNetwork(err error) bool {
	return isCode(err, ErrCodeNetwork)
}

// IsRequest checks if an error is a Request error.
func IsRequest(err error) bool {
	return isCode(err, ErrCodeRequest)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsStorage checks if an error is a Storage error.
func IsStorage(err error) bool {
	return isCode(err, ErrCodeStorage)
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// IsTimeout checks if an error is a Timeout error.
func IsTimeout(err error) bool {
	return isCode(err, ErrCodeTimeout)
}

// IsCanceled checks if an error is a Canceled error.
func IsCanceled(err error) bool {
	return isCode(err, ErrCodeCanceled)
}

// IsUnauthorized reports whether err is a request error with HTTP 401.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == 401
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// StatusOf returns the HTTP status carried by a request error, or 0.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return 0
}

// DetailString returns a string field from the backend error payload.
func DetailString(err error, key string) string {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Details == nil {
		return ""
	}
	if s, ok := appErr.Details[key].(string); ok {
		return s
	}
	return ""
}

// MessageOf returns the user-facing message of err, or fallback when err carries none.
// For AppErrors only the Message is used so transport causes do not leak into the UI.
func MessageOf(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Message != "" {
			return appErr.Message
		}
		return fallback
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
