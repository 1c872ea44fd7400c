package errors

import (
	"errors"
	"net/http"
)

// Domain errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrBadRequest   = errors.New("bad request")
	ErrInternal     = errors.New("internal error")
)

// Machine-checkable error codes
const (
	CodeBadRequest        = "BAD_REQUEST"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeNotFound          = "NOT_FOUND"
	CodeInternalError     = "INTERNAL_ERROR"
	CodeKeyMissing        = "KEY_MISSING"
	CodeNoValidKey        = "NO_VALID_KEY"
	CodeNoFreeKey         = "NO_FREE_KEY"
	CodeKeyNotFound       = "KEY_NOT_FOUND"
	CodeInvalidThresholds = "INVALID_THRESHOLDS"
	CodeInvalidTemplate   = "INVALID_TEMPLATE"
)

// AppError represents application error with HTTP status
type AppError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, message, ErrNotFound)
}

func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeInvalidInput, message, ErrInvalidInput)
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeInternalError, "internal server error", err)
}

// Validation creates a 400 error carrying a specific reason code
func Validation(code, message string) *AppError {
	return NewAppError(http.StatusBadRequest, code, message, ErrInvalidInput)
}

// KeyNotFound is returned when a key string does not resolve to a live record
func KeyNotFound() *AppError {
	return NewAppError(http.StatusNotFound, CodeKeyNotFound, "key not found", ErrNotFound)
}

func NoFreeKey() *AppError {
	return NewAppError(http.StatusNotFound, CodeNoFreeKey, "no free key available", ErrNotFound)
}

// IsNotFound reports whether err is, or wraps, ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
