// Package apperr defines the caller-visible error taxonomy shared across the
// sync core. Every component returns one of these kinds instead of an
// ad-hoc error string, so the HTTP layer can render a stable status code
// without re-sniffing driver or transport errors.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the caller-visible classification of a failure.
type Kind string

const (
	Validation         Kind = "validation"
	Unauthenticated    Kind = "unauthenticated"
	ForbiddenResource  Kind = "forbidden-resource"
	NotFound           Kind = "not-found"
	RateLimited        Kind = "rate-limited"
	UpstreamRateLimit  Kind = "upstream-rate-limited"
	UpstreamQuota      Kind = "upstream-quota-exceeded"
	UpstreamAuth       Kind = "upstream-auth"
	UpstreamNetwork    Kind = "upstream-network"
	Conflict           Kind = "conflict"
	Internal           Kind = "internal"
	SyncAlreadyRunning Kind = "sync-already-running"
)

// Error is the concrete error type returned by every component in this
// module. It carries enough context to render an RFC7807-shaped body
// without the HTTP layer knowing anything about the originating component.
type Error struct {
	Kind   Kind
	Title  string
	Detail string
	Err    error // wrapped cause, not serialized
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return e.Title
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with the given kind and title.
func New(kind Kind, title string) *Error {
	return &Error{Kind: kind, Title: title}
}

// Wrap builds an *Error that carries an underlying cause for logging, while
// keeping the caller-visible title distinct from the internal error text.
func Wrap(kind Kind, title string, cause error) *Error {
	return &Error{Kind: kind, Title: title, Err: cause}
}

// WithDetail returns a copy of e with Detail set.
func (e *Error) WithDetail(detail string) *Error {
	cp := *e
	cp.Detail = detail
	return &cp
}

// As extracts an *Error from err, if present.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the Kind of err, defaulting to Internal when err does not
// carry a classified kind.
func KindOf(err error) Kind {
	if ae, ok := As(err); ok {
		return ae.Kind
	}
	return Internal
}

// HTTPStatus maps a Kind to the status code it is surfaced as.
func HTTPStatus(k Kind) int {
	switch k {
	case Validation:
		return http.StatusBadRequest
	case Unauthenticated, UpstreamAuth:
		return http.StatusUnauthorized
	case ForbiddenResource:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case RateLimited, UpstreamRateLimit:
		return http.StatusTooManyRequests
	case Conflict, SyncAlreadyRunning:
		return http.StatusConflict
	case UpstreamQuota, UpstreamNetwork, Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// TypeURI returns a stable, non-dereferenced URI used as the RFC7807 "type"
// field. These are identifiers, not live documentation links.
func TypeURI(k Kind) string {
	return "https://errors.calensync.dev/" + string(k)
}
