package errors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeStorage indicates the backing store could not be opened or used.
	ErrCodeStorage ErrorCode = "storage"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeNotFound indicates a row with the requested id does not exist.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeUnauthorized indicates an unauthenticated admin request.
	ErrCodeUnauthorized ErrorCode = "unauthorized"
)

// AppError is a structured application error with a code, message and optional cause.
// It supports errors.Is and errors.As through Unwrap.
type AppError struct {
	Code    ErrorCode
	Message string
	// Fields maps a form field name to a user-facing message (validation only).
	Fields map[string]string
	Cause  error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(parts, "; "))
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any *AppError with the same code, so errors.Is(err, ErrNotFound) works
// regardless of message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.Fields == nil
}

// Code sentinels for use with errors.Is.
var (
	ErrStorage      = &AppError{Code: ErrCodeStorage}
	ErrValidation   = &AppError{Code: ErrCodeValidation}
	ErrNotFound     = &AppError{Code: ErrCodeNotFound}
	ErrUnauthorized = &AppError{Code: ErrCodeUnauthorized}
)

// Storage wraps err as a storage failure. Returns nil when err is nil.
func Storage(err error, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: ErrCodeStorage, Message: message, Cause: err}
}

// Validation creates a validation error without field detail.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// ValidationFields creates a validation error carrying per-field messages.
func ValidationFields(fields map[string]string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: "invalid input", Fields: fields}
}

// ValidationField creates a validation error for a single field.
func ValidationField(field, message string) *AppError {
	return ValidationFields(map[string]string{field: message})
}

// NotFoundf creates a not-found error with a formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return &AppError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized creates an authorization error.
func Unauthorized(message string) *AppError {
	return &AppError{Code: ErrCodeUnauthorized, Message: message}
}

// As extracts an *AppError from err.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsStorage reports whether err is a storage error.
func IsStorage(err error) bool { return errors.Is(err, ErrStorage) }

// IsUnauthorized reports whether err is an authorization error.
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

// FieldErrors returns the per-field messages of a validation error, or nil.
func FieldErrors(err error) map[string]string {
	appErr, ok := As(err)
	if !ok || appErr.Code != ErrCodeValidation {
		return nil
	}
	return appErr.Fields
}

// HTTPStatus maps err to the response status used by handlers.
func HTTPStatus(err error) int {
	appErr, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch appErr.Code {
	case ErrCodeValidation:
		return http.StatusUnprocessableEntity
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
