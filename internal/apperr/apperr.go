// Package apperr defines the typed error kinds the core returns across
// package boundaries, so HTTP adapters and callers can map a single error
// value to a status code or retry policy without string matching.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindForbidden       Kind = "forbidden"
	KindUnsupported     Kind = "unsupported"
	KindTransient       Kind = "transient"
	KindDeadlineExceeded Kind = "deadline_exceeded"
	KindInternal        Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func new(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func Validation(format string, args ...any) *Error  { return new(KindValidation, format, args...) }
func NotFound(format string, args ...any) *Error     { return new(KindNotFound, format, args...) }
func Conflict(format string, args ...any) *Error     { return new(KindConflict, format, args...) }
func Forbidden(format string, args ...any) *Error    { return new(KindForbidden, format, args...) }
func Unsupported(format string, args ...any) *Error  { return new(KindUnsupported, format, args...) }
func Internal(format string, args ...any) *Error     { return new(KindInternal, format, args...) }

func Transient(cause error, format string, args ...any) *Error {
	return wrap(KindTransient, cause, format, args...)
}

func DeadlineExceeded(cause error, format string, args ...any) *Error {
	return wrap(KindDeadlineExceeded, cause, format, args...)
}

func WrapInternal(cause error, format string, args ...any) *Error {
	return wrap(KindInternal, cause, format, args...)
}

// KindOf reports the Kind of err, or KindInternal if err is not (and does
// not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the operation that produced err should be
// retried with backoff. Only KindTransient is retryable; every other kind
// reflects a decision the caller must act on, not a transport hiccup.
func Retryable(err error) bool {
	return Is(err, KindTransient)
}
