// Package apierror carries the error taxonomy the REST and RPC layers map
// onto HTTP/RPC status codes: validation, not-found, conflict and timeout.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies which of the taxonomy buckets an Error belongs to.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindTimeout    Kind = "timeout"
)

// Error is a typed error carrying one of the taxonomy kinds plus a
// human-readable reason. It wraps an optional underlying cause.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error's Kind to the REST v1 status code from §6/§7.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func Validation(reason string) *Error { return &Error{Kind: KindValidation, Reason: reason} }
func NotFound(reason string) *Error   { return &Error{Kind: KindNotFound, Reason: reason} }
func Conflict(reason string) *Error   { return &Error{Kind: KindConflict, Reason: reason} }
func Timeout(reason string) *Error    { return &Error{Kind: KindTimeout, Reason: reason} }

// Wrap attaches a Kind/Reason to an underlying error without discarding it.
func Wrap(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

// As reports whether err (or one it wraps) is an *Error, returning it.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	apiErr, ok := As(err)
	return ok && apiErr.Kind == kind
}
