// Package rpcerr defines the failure taxonomy shared by the parameter
// decoder, the method resolver and the streaming codecs.
//
// Every failure is an *Error carrying a Kind. Errors compare by kind, so
// callers can test for a category without caring about the message:
//
//	if errors.Is(err, rpcerr.ErrCoercion) {
//	    ...
//	}
package rpcerr

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure.
type Kind string

const (
	// KindDecode is malformed JSON/CSV syntax, or a parameter value that cannot
	// be decoded at all (e.g. invalid percent-encoding).
	KindDecode Kind = "decode"
	// KindResolution is an unknown method name, or two methods registered
	// under the same name.
	KindResolution Kind = "resolution"
	// KindCoercion is a decoded parameter that does not fit the declared shape.
	KindCoercion Kind = "coercion"
	// KindInvocation is a failure raised by a method body.
	KindInvocation Kind = "invocation"
	// KindResource is a failure closing a streamed resource.
	KindResource Kind = "resource"
)

// Targets for errors.Is.
var (
	ErrDecode     = &Error{Kind: KindDecode}
	ErrResolution = &Error{Kind: KindResolution}
	ErrCoercion   = &Error{Kind: KindCoercion}
	ErrInvocation = &Error{Kind: KindInvocation}
	ErrResource   = &Error{Kind: KindResource}
)

// Error is a categorized failure. Err, when set, is the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "rpcerr: <nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = "failed"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Decode creates a KindDecode error.
func Decode(err error, format string, args ...any) *Error {
	return newError(KindDecode, err, format, args...)
}

// Resolution creates a KindResolution error.
func Resolution(format string, args ...any) *Error {
	return newError(KindResolution, nil, format, args...)
}

// Coercion creates a KindCoercion error.
func Coercion(err error, format string, args ...any) *Error {
	return newError(KindCoercion, err, format, args...)
}

// Invocation creates a KindInvocation error wrapping the method's own failure.
func Invocation(method string, err error) *Error {
	return newError(KindInvocation, err, "method %s", method)
}

// Resource creates a KindResource error.
func Resource(err error, format string, args ...any) *Error {
	return newError(KindResource, err, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) && e != nil {
		return e.Kind
	}
	return ""
}
