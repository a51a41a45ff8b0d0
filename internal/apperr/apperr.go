// Package apperr defines the typed error kinds shared across pkgraph's
// components, so HTTP handlers and schedulers can map a failure to the
// right response or retry policy without string-matching messages.
package apperr

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Kind classifies an Error for callers that need to branch on failure mode
// (HTTP status mapping, retry eligibility, audit-log severity).
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindConflict
	KindAuth
	KindUpstream
	KindTransient
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindUpstream:
		return "upstream"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every pkgraph component. ErrorID is
// generated at construction time and logged immediately, so operators can
// correlate a user-facing error ID with the structured log line that
// carries the real cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	ErrorID string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind, logs it at a severity matching
// the kind, and returns it.
func New(kind Kind, message string, cause error) *Error {
	e := &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
		ErrorID: uuid.NewString(),
	}
	attrs := []any{slog.String("error_id", e.ErrorID), slog.String("kind", kind.String())}
	if cause != nil {
		attrs = append(attrs, slog.String("cause", cause.Error()))
	}
	switch kind {
	case KindFatal, KindUpstream:
		slog.Error(message, attrs...)
	case KindConflict, KindTransient:
		slog.Warn(message, attrs...)
	default:
		slog.Info(message, attrs...)
	}
	return e
}

func Validation(message string, cause error) *Error { return New(KindValidation, message, cause) }
func NotFound(message string, cause error) *Error    { return New(KindNotFound, message, cause) }
func Conflict(message string, cause error) *Error    { return New(KindConflict, message, cause) }
func Auth(message string, cause error) *Error        { return New(KindAuth, message, cause) }
func Upstream(message string, cause error) *Error    { return New(KindUpstream, message, cause) }
func Transient(message string, cause error) *Error   { return New(KindTransient, message, cause) }
func Fatal(message string, cause error) *Error       { return New(KindFatal, message, cause) }

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
