package core

import (
	"errors"
	"fmt"
)

// Error is the canonical error type surfaced by the SDK.
type Error struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Code       string    `json:"code,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrAuthRequired means no bearer credential was available for an
	// operation that requires one.
	ErrAuthRequired ErrorType = "auth_required_error"
	// ErrNotConnected means a send was attempted without an open channel.
	ErrNotConnected ErrorType = "not_connected_error"
	// ErrUpstream means the backend answered with a non-2xx status.
	ErrUpstream ErrorType = "upstream_error"
	// ErrInvalidRequest means the caller passed arguments the SDK rejects
	// before any network activity.
	ErrInvalidRequest ErrorType = "invalid_request_error"
)

// NewAuthRequiredError creates an auth-required error.
func NewAuthRequiredError(message string) *Error {
	return &Error{
		Type:    ErrAuthRequired,
		Message: message,
	}
}

// NewNotConnectedError creates a not-connected error.
func NewNotConnectedError(message string) *Error {
	return &Error{
		Type:    ErrNotConnected,
		Message: message,
	}
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// NewUpstreamError creates an upstream error from a non-2xx response.
func NewUpstreamError(statusCode int, message string) *Error {
	return &Error{
		Type:       ErrUpstream,
		Message:    message,
		StatusCode: statusCode,
	}
}

// IsType reports whether err is (or wraps) a canonical *Error of the given type.
func IsType(err error, t ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == t
}

// IsAuthRequired reports whether err is an auth-required error.
func IsAuthRequired(err error) bool { return IsType(err, ErrAuthRequired) }

// IsNotConnected reports whether err is a not-connected error.
func IsNotConnected(err error) bool { return IsType(err, ErrNotConnected) }
