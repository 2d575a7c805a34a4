// Package errors defines the coded error type every layer returns and how each code
// is presented over HTTP.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeInsufficient  Code = "INSUFFICIENT_BALANCE"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
	CodeGateway       Code = "GATEWAY_ERROR"
)

// Kind groups codes into the failure classes callers react to.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindExternal   Kind = "external"
	KindAccess     Kind = "access"
	KindInternal   Kind = "internal"
)

// Metadata describes how a code is surfaced. Details are only echoed to clients
// when DetailsAllowed is set.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	Kind           Kind
}

const (
	final     = false
	retryable = true
	opaque    = false
	detailed  = true
)

var metadataByCode = map[Code]Metadata{
	CodeValidation:    {http.StatusBadRequest, final, "validation failed", detailed, KindValidation},
	CodeUnauthorized:  {http.StatusUnauthorized, final, "authentication required", opaque, KindAccess},
	CodeForbidden:     {http.StatusForbidden, final, "access denied", opaque, KindAccess},
	CodeNotFound:      {http.StatusNotFound, final, "resource not found", opaque, KindValidation},
	CodeConflict:      {http.StatusConflict, final, "conflict detected", detailed, KindConflict},
	CodeStateConflict: {http.StatusUnprocessableEntity, final, "state transition disallowed", detailed, KindConflict},
	CodeInsufficient:  {http.StatusConflict, final, "requested amount exceeds available balance", detailed, KindConflict},
	CodeIdempotency:   {http.StatusConflict, final, "idempotency key reused", detailed, KindConflict},
	CodeRateLimit:     {http.StatusTooManyRequests, final, "rate limit exceeded", opaque, KindAccess},
	CodeInternal:      {http.StatusInternalServerError, retryable, "internal server error", opaque, KindInternal},
	CodeDependency:    {http.StatusServiceUnavailable, retryable, "dependency unavailable", detailed, KindExternal},
	CodeGateway:       {http.StatusBadGateway, retryable, "payment gateway error", detailed, KindExternal},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// KindOf reports the failure class of err; untyped errors are internal.
func KindOf(err error) Kind {
	return MetadataFor(As(err).Code()).Kind
}

// Retryable reports whether repeating the operation that produced err could
// succeed. Untyped errors are assumed transient.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return MetadataFor(As(err).Code()).Retryable
}

// Error is a coded failure with an optional cause and client-safe details.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// FieldError builds a validation error pointing at a single input field.
func FieldError(field, message string) *Error {
	return New(CodeValidation, message).WithDetails(map[string]string{field: message})
}

// Code is CodeInternal on a nil receiver so As(err).Code() is always usable.
func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	default:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
