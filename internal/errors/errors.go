// Package errors implements the closed error taxonomy of spec.md §7:
// every error the service surfaces across a component boundary is one of
// eight kinds, each with a fixed HTTP status and retryability hint.
//
// Adapted from the teacher's open ErrorType/Severity scheme
// (internal/errors/errors.go in the reference repository): that scheme
// modeled an arbitrary number of severities for a CLI tool's own
// diagnostics. A service boundary needs a *closed* set that a caller can
// exhaustively switch over and map to a transport status code, so the
// enum here is narrowed to the eight kinds spec.md actually names.
package errors

import (
	"fmt"
	"net/http"
)

// Kind is one of the eight error categories from spec.md §7.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
	KindTooEarly
	KindServiceUnavailable
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindNotFound:
		return "NotFound"
	case KindUnauthorized:
		return "Unauthorized"
	case KindForbidden:
		return "Forbidden"
	case KindConflict:
		return "Conflict"
	case KindTooEarly:
		return "TooEarly"
	case KindServiceUnavailable:
		return "ServiceUnavailable"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// HTTPStatus maps a Kind to the status code spec.md §6 assigns it. TooEarly
// is deliberately surfaced as 200 with success:false per spec.md §7 — DLQ
// retry-too-soon is not a transport-level failure.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindTooEarly:
		return http.StatusOK
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may reasonably retry the operation.
func (k Kind) Retryable() bool {
	return k == KindServiceUnavailable || k == KindTooEarly
}

// Error is a structured error carrying a Kind, a message, an optional cause,
// and a context bag used for log fields (tenant, entity id, ...).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// WithContext attaches a context field and returns the same error for
// chaining, mirroring the teacher's builder-style WithContext.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a Kind and message. Returns nil if err
// is nil, so call sites can write `return errors.Wrap(err, ...)` unconditionally.
func Wrap(err error, kind Kind, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: err}
}

// Convenience constructors, one per kind, mirroring the teacher's
// ConfigError/ValidationError/... constructor set.

func Validation(format string, args ...any) *Error {
	return Newf(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return Newf(KindNotFound, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return Newf(KindUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return Newf(KindForbidden, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return Newf(KindConflict, format, args...)
}

func TooEarly(format string, args ...any) *Error {
	return Newf(KindTooEarly, format, args...)
}

func ServiceUnavailable(err error, format string, args ...any) *Error {
	return &Error{Kind: KindServiceUnavailable, Message: fmt.Sprintf(format, args...), Cause: err}
}

func Internal(err error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Cause: err}
}

// As extracts an *Error from err, mirroring stdlib errors.As ergonomics
// without requiring callers to import both packages.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}

// GetKind returns the Kind of err, or KindInternal if err is not an *Error
// (an unclassified error is treated as an internal bug, never silently
// dropped).
func GetKind(err error) Kind {
	if err == nil {
		return KindInternal
	}
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindInternal
}
