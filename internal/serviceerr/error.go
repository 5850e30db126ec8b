package serviceerr

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure so transports can pick a status without string matching.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindForbidden  Kind = "forbidden"
	KindInternal   Kind = "internal"
)

// Error is the failure type returned by every domain service.
type Error struct {
	code    string
	kind    Kind
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the stable "<operation>.<reason>" identifier.
func (e *Error) Code() string {
	return e.code
}

// Kind returns the failure class.
func (e *Error) Kind() Kind {
	return e.kind
}

// Message returns a human-readable description safe to show to API callers.
func (e *Error) Message() string {
	if e.message != "" {
		return e.message
	}
	if e.kind == KindInternal || e.err == nil {
		return defaultMessage(e.kind)
	}
	return e.err.Error()
}

// New builds an Error with code "<operation>.<reason>".
func New(operation, reason string, kind Kind, cause error) error {
	return &Error{
		code: fmt.Sprintf("%s.%s", operation, reason),
		kind: kind,
		err:  cause,
	}
}

// Newf is New with an explicit caller-facing message.
func Newf(operation, reason string, kind Kind, cause error, format string, args ...any) error {
	return &Error{
		code:    fmt.Sprintf("%s.%s", operation, reason),
		kind:    kind,
		message: fmt.Sprintf(format, args...),
		err:     cause,
	}
}

// KindOf reports the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var serviceError *Error
	if errors.As(err, &serviceError) {
		return serviceError.kind
	}
	return KindInternal
}

// CodeOf reports the code of err, or "" when err is not an *Error.
func CodeOf(err error) string {
	var serviceError *Error
	if errors.As(err, &serviceError) {
		return serviceError.code
	}
	return ""
}

// MessageOf reports the caller-facing message for err.
func MessageOf(err error) string {
	var serviceError *Error
	if errors.As(err, &serviceError) {
		return serviceError.Message()
	}
	return defaultMessage(KindInternal)
}

func defaultMessage(kind Kind) string {
	switch kind {
	case KindValidation:
		return "invalid request"
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflicting state"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal error"
	}
}
