// Package corepipeerr defines the closed set of error kinds that cross the
// executor boundary. Every failure that reaches a caller — unary, streaming,
// or FFI — is one of these kinds; nothing is swallowed silently.
package corepipeerr

import (
	"errors"
	"fmt"
)

// Kind is the closed taxonomy of failure.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindTypeValidation Kind = "type_validation"
	KindNodeExecution  Kind = "node_execution"
	KindResourceLimit  Kind = "resource_limit"
	KindWorkerTransport Kind = "worker_transport"
	KindAuthentication Kind = "authentication"
	KindInternal       Kind = "internal"
)

// Error is the typed, user-visible failure shape. It never carries a stack
// trace across the FFI boundary by default.
type Error struct {
	Kind          Kind
	Message       string
	FailingNodeID string
	Context       map[string]string
	cause         error
}

func (e *Error) Error() string {
	if e.FailingNodeID != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Kind, e.Message, e.FailingNodeID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New builds a typed error with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Context: map[string]string{}}
}

// Wrap builds a typed error that chains an underlying cause through Unwrap
// so errors.Is/errors.As keep working across the boundary.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause, Context: map[string]string{}}
}

// WithNode sets the failing node id and returns the receiver for chaining.
func (e *Error) WithNode(nodeID string) *Error {
	e.FailingNodeID = nodeID
	return e
}

// WithContext sets a single key in the free-form context map.
func (e *Error) WithContext(key, value string) *Error {
	if e.Context == nil {
		e.Context = map[string]string{}
	}
	e.Context[key] = value
	return e
}

// Is reports whether err is a *Error of the given kind, unwrapping along
// the chain so wrapped causes still classify correctly.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, defaulting to KindInternal for
// untyped errors: an unrecognized error is treated as a generic failure
// rather than panicking on a type assertion.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
