// Package rpc holds the envelopes that cross a service boundary: requests,
// replies, events and the error taxonomy shared by every service.
package rpc

import (
	"errors"
	"fmt"
)

// Code is the transport-agnostic error classification.
type Code string

const (
	CodeBadRequest      Code = "BAD_REQUEST"
	CodeValidationError Code = "VALIDATION_ERROR"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeInternal        Code = "INTERNAL"
)

// GenericInternalMessage replaces the text of any fault that was not raised
// as an *Error.
const GenericInternalMessage = "Internal Error"

// Error is the only error shape allowed to leave a handler.
// The cause is kept for local errors.Is checks and is never serialised.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`

	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// WithCause returns a copy of e that unwraps to cause.
func (e *Error) WithCause(cause error) *Error {
	out := *e
	out.cause = cause
	return &out
}

// Retryable reports whether a caller may retry the failed call with backoff.
// Only INTERNAL failures qualify; the framework itself never retries.
func (e *Error) Retryable() bool {
	return e.Code == CodeInternal
}

func newError(code Code, message string, details []any) *Error {
	e := &Error{Code: code, Message: message}
	if len(details) > 0 {
		e.Details = details[0]
	}
	return e
}

func BadRequest(message string, details ...any) *Error {
	return newError(CodeBadRequest, message, details)
}

func ValidationError(message string, details ...any) *Error {
	return newError(CodeValidationError, message, details)
}

func Unauthorized(message string, details ...any) *Error {
	return newError(CodeUnauthorized, message, details)
}

func Forbidden(message string, details ...any) *Error {
	return newError(CodeForbidden, message, details)
}

func NotFound(message string, details ...any) *Error {
	return newError(CodeNotFound, message, details)
}

func Internal(message string, details ...any) *Error {
	return newError(CodeInternal, message, details)
}

// Coerce returns the *Error carried by err, or a generic INTERNAL error when
// err is any other fault. The raw fault is kept only as the local cause.
func Coerce(err error) *Error {
	if err == nil {
		return nil
	}
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		if !rpcErr.Code.Known() {
			return Internal(rpcErr.Message).WithCause(err)
		}
		return rpcErr
	}
	return Internal(GenericInternalMessage).WithCause(err)
}

// IsCode reports whether err carries an *Error with the given code.
func IsCode(err error, code Code) bool {
	var rpcErr *Error
	return errors.As(err, &rpcErr) && rpcErr.Code == code
}

// Known reports whether c is part of the taxonomy.
func (c Code) Known() bool {
	switch c {
	case CodeBadRequest, CodeValidationError, CodeUnauthorized, CodeForbidden, CodeNotFound, CodeInternal:
		return true
	default:
		return false
	}
}
