package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code is the stable, client-visible error identifier.
type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeIdempotency  Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit    Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"

	// CodeInvalidTransition marks an order action attempted from the wrong
	// predecessor status.
	CodeInvalidTransition Code = "INVALID_TRANSITION"
)

// Metadata decides how a code is rendered over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	hideDetails = false
	showDetails = true
	final       = false
	retryable   = true
)

var metadataByCode = map[Code]Metadata{
	CodeValidation:        {http.StatusBadRequest, final, "validation failed", showDetails},
	CodeInvalidTransition: {http.StatusBadRequest, final, "invalid state transition", showDetails},
	CodeUnauthorized:      {http.StatusUnauthorized, final, "authentication required", hideDetails},
	CodeForbidden:         {http.StatusForbidden, final, "access denied", hideDetails},
	CodeNotFound:          {http.StatusNotFound, final, "resource not found", hideDetails},
	CodeConflict:          {http.StatusConflict, final, "conflict detected", hideDetails},
	CodeIdempotency:       {http.StatusConflict, final, "idempotency key reused", showDetails},
	CodeRateLimit:         {http.StatusTooManyRequests, final, "rate limit exceeded", hideDetails},
	CodeInternal:          {http.StatusInternalServerError, retryable, "internal server error", hideDetails},
	CodeDependency:        {http.StatusServiceUnavailable, retryable, "dependency unavailable", showDetails},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded error. Message is internal; clients only ever see the
// code's public message and, where allowed, Details.
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
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap attaches code to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// WithDetails sets the client-visible details and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

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

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.code) + ": " + e.message
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
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given typed code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
