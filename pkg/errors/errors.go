package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents application-specific error codes
type ErrorCode string

const (
	// Validation errors
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Authentication errors
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"

	// Authorization errors
	ErrCodeForbidden ErrorCode = "FORBIDDEN"

	// Not found errors
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"

	// Conflict errors
	ErrCodeConflict            ErrorCode = "CONFLICT"
	ErrCodeDuplicateConnection ErrorCode = "DUPLICATE_CONNECTION"
	ErrCodeSessionFinalized    ErrorCode = "SESSION_FINALIZED"

	// Relay errors
	ErrCodeRelayTargetUnknown ErrorCode = "RELAY_TARGET_UNKNOWN"

	// Internal errors
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase      ErrorCode = "DATABASE_ERROR"
	ErrCodeStorageWrite  ErrorCode = "STORAGE_WRITE_FAILED"
	ErrCodeUnrecoverable ErrorCode = "UNRECOVERABLE_INTERNAL"
)

// AppError represents a structured application error with code, message, and HTTP status
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Details    any       `json:"details,omitempty"`
	Err        error     `json:"-"`
}

// Error implements the error interface, returning a formatted error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the given code and message
// The status code defaults to 500 Internal Server Error
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// NewWithStatus creates a new AppError with a specific HTTP status code
func NewWithStatus(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an existing error with an AppError, preserving the original error
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// WithDetails adds additional details to an AppError for debugging
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// Validation errors
func ValidationError(message string) *AppError {
	return NewWithStatus(ErrCodeValidation, message, http.StatusBadRequest)
}

func InvalidInputError(message string) *AppError {
	return NewWithStatus(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

// Authentication errors
func UnauthorizedError(message string) *AppError {
	return NewWithStatus(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func InvalidTokenError(message string) *AppError {
	return NewWithStatus(ErrCodeInvalidToken, message, http.StatusUnauthorized)
}

// Authorization errors
func ForbiddenError(message string) *AppError {
	return NewWithStatus(ErrCodeForbidden, message, http.StatusForbidden)
}

// Not found errors
func NotFoundError(resource string) *AppError {
	return NewWithStatus(ErrCodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// SessionNotFoundError signals a lookup for a consultation with no live session
func SessionNotFoundError(sessionKey string) *AppError {
	return NewWithStatus(ErrCodeSessionNotFound, fmt.Sprintf("no live call session for consultation %s", sessionKey), http.StatusNotFound)
}

// DuplicateConnectionError signals a join reusing a connection identifier
// that is already registered; reconnects must use a fresh connection
func DuplicateConnectionError(connectionID string) *AppError {
	return NewWithStatus(ErrCodeDuplicateConnection, fmt.Sprintf("connection %s is already registered", connectionID), http.StatusConflict)
}

// SessionFinalizedError signals an action against a session that has already
// ended or failed
func SessionFinalizedError(sessionKey string) *AppError {
	return NewWithStatus(ErrCodeSessionFinalized, fmt.Sprintf("call session %s is finalized", sessionKey), http.StatusConflict)
}

// RelayTargetUnknownError signals an envelope addressed to a connection that
// is no longer part of the session; relays drop these silently after logging
func RelayTargetUnknownError(connectionID string) *AppError {
	return NewWithStatus(ErrCodeRelayTargetUnknown, fmt.Sprintf("relay target %s is not in the session", connectionID), http.StatusNotFound)
}

// Conflict errors
func ConflictError(message string) *AppError {
	return NewWithStatus(ErrCodeConflict, message, http.StatusConflict)
}

// Internal errors
func InternalError(message string) *AppError {
	return NewWithStatus(ErrCodeInternal, message, http.StatusInternalServerError)
}

func DatabaseError(err error) *AppError {
	return Wrap(ErrCodeDatabase, "Database error", err)
}

// StorageWriteError marks a best-effort persistence failure; callers log it
// and continue, in-memory state is never rolled back
func StorageWriteError(err error) *AppError {
	return Wrap(ErrCodeStorageWrite, "Storage write failed", err)
}

// UnrecoverableError marks an internal failure that drives a session to Failed
func UnrecoverableError(err error) *AppError {
	return Wrap(ErrCodeUnrecoverable, "Unrecoverable internal error", err)
}

// IsAppError checks if an error is an AppError type
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError extracts AppError from an error, wrapping non-AppErrors as InternalError
func GetAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return InternalError(err.Error())
}

// HasCode reports whether err is an AppError carrying the given code
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Code == code
}
