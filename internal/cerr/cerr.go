// Package cerr implements the error taxonomy from the error handling
// design: a closed set of kinds rather than a proliferation of Go error
// types, so callers can branch on Is(err, kind) regardless of which
// component raised it.
package cerr

import (
	"errors"
	"fmt"
)

// Kind is one of the error taxonomy's closed set.
type Kind string

const (
	NotFound         Kind = "not_found"
	PermissionDenied Kind = "permission_denied"
	InvalidArgument  Kind = "invalid_argument"
	FailedPrecondition Kind = "failed_precondition"
	Timeout          Kind = "timeout"
	Transport        Kind = "transport"
	ExternalError    Kind = "external_error"
	Corruption       Kind = "corruption"
	Cancelled        Kind = "cancelled"
)

// Error wraps an underlying cause with a kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a kinded error for operation op wrapping err. err may be
// nil when the kind itself is the whole story (e.g. NotFound).
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err (or anything it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// KindOf extracts the kind of err, or "" if err is not (or does not wrap)
// a *Error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
