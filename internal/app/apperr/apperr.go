// Package apperr carries the client-facing error taxonomy. Domain packages return
// sentinel errors; application handlers wrap them with a Kind and a stable code.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindInternal       Kind = "internal"
)

// Error is a typed failure with a machine-readable code and a human-readable message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s/%s: %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s/%s: %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap attaches a kind and code to err; the message is err's text.
func Wrap(kind Kind, code string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Code: code, Message: err.Error(), Err: err}
}

func Validation(code string, err error) *Error    { return Wrap(KindValidation, code, err) }
func Authorization(code string, err error) *Error { return Wrap(KindAuthorization, code, err) }
func NotFound(code string, err error) *Error      { return Wrap(KindNotFound, code, err) }
func Conflict(code string, err error) *Error      { return Wrap(KindConflict, code, err) }

func Authentication(code, message string) *Error {
	return New(KindAuthentication, code, message)
}

// Internal hides err behind a generic message. The cause stays reachable for logging.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal", Message: "internal error", Err: err}
}

// As extracts a typed error from the chain.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// Normalize turns any error into a typed one. Untyped errors become internal.
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	return Internal(err)
}
