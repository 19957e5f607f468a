// Package apperr defines the error kinds surfaced by punch services.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a service error.
type Kind int

const (
	KindUnknown Kind = iota
	KindConflict
	KindNotFound
	KindInvalidInput
	KindUpstream
)

func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not found"
	case KindInvalidInput:
		return "invalid input"
	case KindUpstream:
		return "upstream unavailable"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is checks.
var (
	ErrConflict     = &Error{Kind: KindConflict}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
	ErrUpstream     = &Error{Kind: KindUpstream}
)

// Error is a classified error. Op names the operation that failed.
type Error struct {
	Kind      Kind
	Op        string
	Msg       string
	Err       error
	Retryable bool
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Conflict builds a KindConflict error.
func Conflict(op, format string, args ...any) error {
	return &Error{Kind: KindConflict, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NotFound builds a KindNotFound error.
func NotFound(op, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Invalid builds a KindInvalidInput error.
func Invalid(op, format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Upstream wraps a transport failure. Upstream errors are always retryable.
func Upstream(op string, err error, format string, args ...any) error {
	return &Error{Kind: KindUpstream, Op: op, Msg: fmt.Sprintf(format, args...), Err: err, Retryable: true}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether the caller may retry the failed operation.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
