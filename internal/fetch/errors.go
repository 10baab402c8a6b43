package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

// Errors returned by Session. Callers classify them with errors.Is.
var (
	// ErrTransport indicates a network-level failure (timeout, connection reset, DNS).
	ErrTransport = errors.New("transport error")

	// ErrDenied indicates the server refused access (401, 403, 451).
	ErrDenied = errors.New("access denied")

	// ErrNotFound indicates the resource does not exist (404, 410).
	ErrNotFound = errors.New("not found")

	// ErrStatus indicates any other non-2xx response.
	ErrStatus = errors.New("unexpected HTTP status")

	// ErrNotHTML indicates a page was expected to be HTML but was not.
	ErrNotHTML = errors.New("response is not HTML")

	// ErrMalformedHTML indicates an HTML body could not be parsed.
	ErrMalformedHTML = errors.New("malformed HTML")
)

// StatusError describes a non-2xx HTTP response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Code, e.URL)
}

// Unwrap maps the status code onto one of the sentinel errors.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusUnavailableForLegalReasons, http.StatusPaymentRequired:
		return ErrDenied
	case http.StatusNotFound, http.StatusGone:
		return ErrNotFound
	default:
		return ErrStatus
	}
}

// IsDenied returns true if the error indicates an access gate.
func IsDenied(err error) bool {
	return errors.Is(err, ErrDenied)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransport returns true for network failures and unexpected statuses,
// i.e. errors that are not a statement about the article itself.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrStatus)
}
