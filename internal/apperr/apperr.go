// Package apperr defines the failure taxonomy shared by every layer of the service.
//
// Operations return an *Error (or wrap one with fmt.Errorf and %w) instead of ad hoc
// errors, and the HTTP boundary classifies whatever reaches it with From.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

// Kind identifies a failure class and the HTTP status it maps to.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindUnavailable
	KindRateLimited
)

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "dependency_unavailable"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Error is a classified failure. Message and Details are safe to return to clients;
// Reason and Err are diagnostic and only ever logged or shown outside production.
type Error struct {
	Kind    Kind
	Message string
	Details []string
	Reason  string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Reason
	if msg == "" {
		msg = e.Message
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs an error of the given kind with a client-facing message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies cause under kind.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// Validation reports malformed input.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Invalid reports malformed input with one detail per offending field.
func Invalid(message string, details ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

// NotFound reports a missing resource.
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// Unavailable wraps a dependency failure that callers may retry.
func Unavailable(cause error) *Error {
	return Wrap(KindUnavailable, "dependency unavailable, please retry", cause)
}

// From classifies err. Unclassified errors become KindInternal with a generic message.
func From(err error) *Error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Unavailable(err)
	}

	return Wrap(KindInternal, "internal server error", err)
}

// KindOf returns the kind From would assign to err.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	return From(err).Kind
}

// IsKind reports whether err classifies as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
