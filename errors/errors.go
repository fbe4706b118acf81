// Package errors provides the error taxonomy shared by the search pipeline,
// the provider adapters and the HTTP surface.
package errors

import (
	"errors"
	"fmt"
)

// Standard error codes.
const (
	CodeInternal      = "INTERNAL_ERROR"
	CodeBadRequest    = "BAD_REQUEST"
	CodeValidation    = "VALIDATION_ERROR"
	CodeTimeout       = "TIMEOUT"
	CodeUnavailable   = "SERVICE_UNAVAILABLE"
	CodeRateLimited   = "RATE_LIMITED"
	CodeProvider      = "PROVIDER_ERROR"
	CodeNoResults     = "NO_RESULTS"
	CodeNotConfigured = "NOT_CONFIGURED"
	CodeNotFound      = "NOT_FOUND"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Wrap wraps an error with an AppError.
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Internal creates an internal server error.
func Internal(message string) *AppError {
	return New(CodeInternal, message)
}

// Validation creates a validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message)
}

// ValidationWithDetails creates a validation error with field details.
func ValidationWithDetails(message string, details map[string]string) *AppError {
	return New(CodeValidation, message).WithDetails(details)
}

// Unavailable creates a service unavailable error. Providers return it when
// they cannot be reached at all (network failure, key revoked, breaker open).
func Unavailable(message string) *AppError {
	return New(CodeUnavailable, message)
}

// UnavailableWrap wraps err as a service unavailable error.
func UnavailableWrap(err error, message string) *AppError {
	return Wrap(err, CodeUnavailable, message)
}

// RateLimited creates a rate limited (quota) error.
func RateLimited(message string) *AppError {
	return New(CodeRateLimited, message)
}

// Provider creates an error for a provider call rejected with an error status.
func Provider(status, message string) *AppError {
	return New(CodeProvider, message).WithDetails(map[string]string{"status": status})
}

// NoResults creates an error for a provider call that succeeded but found nothing usable.
func NoResults(message string) *AppError {
	return New(CodeNoResults, message)
}

// NotFound creates a not found error.
func NotFound(message string) *AppError {
	return New(CodeNotFound, message)
}

// NotConfigured creates an error for an adapter missing required settings.
func NotConfigured(message string) *AppError {
	return New(CodeNotConfigured, message)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return Code(err) == CodeValidation
}

// IsUnavailable checks if the error reports an unreachable provider.
func IsUnavailable(err error) bool {
	return Code(err) == CodeUnavailable
}

// IsRateLimited checks if the error is a quota error.
func IsRateLimited(err error) bool {
	return Code(err) == CodeRateLimited
}

// Code returns the error code or empty string.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
