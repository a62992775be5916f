// Package apperror provides domain-specific error types for mealboard.
// These errors carry an HTTP status code and a user-safe message. The Echo
// error handler maps them to JSON responses automatically, and the client
// engine reconstructs them from response bodies so permission and
// validation failures look the same whether they were caught locally or
// by the server.
//
// NEVER return raw database or infrastructure errors to the client. Always
// wrap them in an apperror type or return a generic internal error.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the base error type for all domain errors. It carries an
// HTTP status code, a machine-readable error type, and a human-readable
// message safe to show to the client.
type AppError struct {
	// Code is the HTTP status code (e.g., 404, 422, 500).
	Code int `json:"-"`

	// Type is a machine-readable error classifier (e.g., "permission_denied").
	Type string `json:"type"`

	// Message is a human-readable description safe for the client.
	Message string `json:"message"`

	// Internal holds the underlying error for logging. Never exposed to client.
	Internal error `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Internal
}

// --- Constructors for common error types ---

// NewNotFound creates a 404 Not Found error.
func NewNotFound(message string) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Type:    "not_found",
		Message: message,
	}
}

// NewBadRequest creates a 400 Bad Request error.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Type:    "bad_request",
		Message: message,
	}
}

// NewUnauthorized creates a 401 Unauthorized error.
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:    http.StatusUnauthorized,
		Type:    "unauthorized",
		Message: message,
	}
}

// NewPermission creates a 403 error for mutations attempted without an
// editor or owner grant on the target calendar.
func NewPermission(message string) *AppError {
	return &AppError{
		Code:    http.StatusForbidden,
		Type:    "permission_denied",
		Message: message,
	}
}

// NewConflict creates a 409 Conflict error (e.g., duplicate share grant,
// entry deleted by another collaborator between render and action).
func NewConflict(message string) *AppError {
	return &AppError{
		Code:    http.StatusConflict,
		Type:    "conflict",
		Message: message,
	}
}

// NewValidation creates a 422 Unprocessable Entity error for validation
// failures caught before any repository call.
func NewValidation(message string) *AppError {
	return &AppError{
		Code:    http.StatusUnprocessableEntity,
		Type:    "validation_error",
		Message: message,
	}
}

// NewInternal creates a 500 Internal Server Error. The real error is stored
// in Internal for logging but the client only sees a generic message.
func NewInternal(err error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Type:     "internal_error",
		Message:  "An unexpected error occurred. Please try again.",
		Internal: err,
	}
}

// FromStatus reconstructs an AppError from an HTTP status code and message,
// used by the remote repository client so server rejections surface with
// the same taxonomy as local ones.
func FromStatus(code int, message string) *AppError {
	switch code {
	case http.StatusBadRequest:
		return NewBadRequest(message)
	case http.StatusUnauthorized:
		return NewUnauthorized(message)
	case http.StatusForbidden:
		return NewPermission(message)
	case http.StatusNotFound:
		return NewNotFound(message)
	case http.StatusConflict:
		return NewConflict(message)
	case http.StatusUnprocessableEntity:
		return NewValidation(message)
	default:
		return &AppError{Code: code, Type: "remote_error", Message: message}
	}
}

// IsPermission reports whether err is a 403 permission error.
func IsPermission(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == http.StatusForbidden
}

// SafeMessage returns the client-safe error message from an error. If the
// error is an AppError, returns its Message field (which is safe to expose).
// For any other error type, returns a generic message to prevent leaking
// internal details like table names or query structure.
func SafeMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "an unexpected error occurred"
}

// SafeCode returns the HTTP status code from an AppError, or 500 for
// any other error type.
func SafeCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
