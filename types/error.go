package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the module.
type ErrorCode string

// Processing error codes
const (
	ErrMalformedInput ErrorCode = "MALFORMED_INPUT"
	ErrLimitExceeded  ErrorCode = "LIMIT_EXCEEDED"
	ErrPromptMismatch ErrorCode = "PROMPT_MISMATCH"
	ErrTokenizerError ErrorCode = "TOKENIZER_ERROR"
)

// Cache error codes
const (
	ErrCapacityConfig ErrorCode = "CAPACITY_CONFIG"
	ErrKeyCollision   ErrorCode = "KEY_COLLISION"
)

// Configuration error codes
const (
	ErrInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	Modality Modality  `json:"modality,omitempty"`
	Index    int       `json:"index"`
	Cause    error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Code)
	if e.Modality != "" {
		prefix = fmt.Sprintf("[%s] %s[%d]", e.Code, e.Modality, e.Index)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithItem records which request item the error belongs to.
func (e *Error) WithItem(modality Modality, index int) *Error {
	e.Modality = modality
	e.Index = index
	return e
}

// AsError extracts a *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error chain.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// IsMalformedInput reports whether a raw item failed validation.
func IsMalformedInput(err error) bool {
	return IsErrorCode(err, ErrMalformedInput)
}

// IsCapacityConfig reports whether a cache was built with a bad capacity.
func IsCapacityConfig(err error) bool {
	return IsErrorCode(err, ErrCapacityConfig)
}

// IsKeyCollision reports whether the key-collision check tripped.
func IsKeyCollision(err error) bool {
	return IsErrorCode(err, ErrKeyCollision)
}

// NewMalformedInputError creates a MALFORMED_INPUT error for a raw item.
func NewMalformedInputError(format string, args ...any) *Error {
	return Errorf(ErrMalformedInput, format, args...)
}

// AtItem returns a copy of err annotated with the item position. The original
// error is left untouched, so it may be shared between goroutines.
func AtItem(err error, modality Modality, index int) error {
	if err == nil {
		return nil
	}
	e, ok := AsError(err)
	if !ok {
		return NewError(ErrInternalError, "process item").WithCause(err).WithItem(modality, index)
	}
	cp := *e
	cp.Modality, cp.Index = modality, index
	return &cp
}
