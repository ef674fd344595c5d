// Package errs defines the uniform error kinds surfaced across the engine.
//
// Every boundary (registries, stores, transport, contexts) wraps failures in
// one of these kinds so callers can branch on Kind() instead of string
// matching, while fmt.Errorf("%w", ...) chains still work normally.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for caller-side branching.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindAuthz        Kind = "authorization"
	KindConflict     Kind = "concurrency"
	KindTransport    Kind = "transport"
	KindProvider     Kind = "provider"
	KindResource     Kind = "resource"
	KindInternal     Kind = "internal"
	KindCancelled    Kind = "cancelled"
)

// Error is the uniform boxed error type.
type Error struct {
	Kind    Kind
	Op      string // component/operation, e.g. "ToolRegistry.Add"
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func new_(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: msg, Err: err}
}

func Validation(op, msg string, err error) *Error { return new_(KindValidation, op, msg, err) }
func Authz(op, msg string, err error) *Error      { return new_(KindAuthz, op, msg, err) }
func Conflict(op, msg string, err error) *Error   { return new_(KindConflict, op, msg, err) }
func Transport(op, msg string, err error) *Error  { return new_(KindTransport, op, msg, err) }
func Provider(op, msg string, err error) *Error   { return new_(KindProvider, op, msg, err) }
func Resource(op, msg string, err error) *Error   { return new_(KindResource, op, msg, err) }
func Internal(op, msg string, err error) *Error   { return new_(KindInternal, op, msg, err) }
func Cancelled(op, msg string, err error) *Error  { return new_(KindCancelled, op, msg, err) }

// Is reports whether err (or any error in its chain) has the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
