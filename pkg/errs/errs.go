package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can map it to a structured
// response without inspecting message text.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindAlreadyRunning Kind = "already_running"
	KindUpstream       Kind = "upstream_unavailable"
	KindStore          Kind = "store"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func AlreadyRunning(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAlreadyRunning, Message: fmt.Sprintf(format, args...)}
}

func Upstream(msg string, err error) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

func Store(msg string, err error) *Error {
	return &Error{Kind: KindStore, Message: msg, Err: err}
}

// KindOf returns the kind of err, or KindStore for untyped errors so
// that persistence failures never masquerade as anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStore
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
