// Package apperr carries the HTTP-facing error taxonomy: every failure that
// reaches a handler is reduced to a status, a stable code and a message.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeBadRequest     = "BAD_REQUEST"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeNotImplemented = "NOT_IMPLEMENTED"
	CodeUnavailable    = "SERVICE_UNAVAILABLE"
	CodeInternal       = "INTERNAL_ERROR"
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Error struct {
	Status  int
	Code    string
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// WithCode returns a copy of e carrying code.
func (e *Error) WithCode(code string) *Error {
	c := *e
	c.Code = code
	return &c
}

func New(status int, code, msg string) *Error {
	return &Error{Status: status, Code: code, Message: msg}
}

func Wrap(err error, status int, code, msg string) *Error {
	return &Error{Status: status, Code: code, Message: msg, Err: err}
}

func Validation(msg string, fields ...FieldError) *Error {
	return &Error{Status: http.StatusBadRequest, Code: CodeValidation, Message: msg, Fields: fields}
}

func BadRequest(code, msg string) *Error {
	if code == "" {
		code = CodeBadRequest
	}
	return New(http.StatusBadRequest, code, msg)
}

func Unauthorized(code, msg string) *Error {
	if code == "" {
		code = CodeUnauthorized
	}
	return New(http.StatusUnauthorized, code, msg)
}

func Forbidden(code, msg string) *Error {
	if code == "" {
		code = CodeForbidden
	}
	return New(http.StatusForbidden, code, msg)
}

func NotFound(msg string) *Error {
	return New(http.StatusNotFound, CodeNotFound, msg)
}

func Conflict(code, msg string) *Error {
	if code == "" {
		code = CodeConflict
	}
	return New(http.StatusConflict, code, msg)
}

func NotImplemented(feature string) *Error {
	return New(http.StatusNotImplemented, CodeNotImplemented, feature+" is not implemented")
}

func Unavailable(code, msg string, err error) *Error {
	if code == "" {
		code = CodeUnavailable
	}
	return Wrap(err, http.StatusServiceUnavailable, code, msg)
}

func Internal(err error) *Error {
	return Wrap(err, http.StatusInternalServerError, CodeInternal, "internal server error")
}

// Mapping binds a sentinel error to the response it produces.
type Mapping struct {
	Target error
	Status int
	Code   string
}

var registry []Mapping

// Register makes errors.Is(err, target) resolve to status/code in From.
// Packages call it from init.
func Register(target error, status int, code string) {
	registry = append(registry, Mapping{Target: target, Status: status, Code: code})
}

// From reduces any error to an *Error. Unknown errors become Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}

	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}

	for _, m := range registry {
		if errors.Is(err, m.Target) {
			return &Error{Status: m.Status, Code: m.Code, Message: m.Target.Error(), Err: err}
		}
	}

	return Internal(err)
}
