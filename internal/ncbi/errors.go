package ncbi

import (
	"errors"
	"fmt"
)

// Common errors returned by the NCBI client.
var (
	// ErrNotFound indicates the record does not exist.
	ErrNotFound = errors.New("not found in NCBI")

	// ErrRateLimited indicates NCBI rejected the request for exceeding the rate limit.
	ErrRateLimited = errors.New("NCBI rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with NCBI")

	// ErrInvalidResponse indicates an unexpected or malformed response.
	ErrInvalidResponse = errors.New("invalid response from NCBI")

	// ErrInvalidID indicates an identifier that cannot be sent to NCBI.
	ErrInvalidID = errors.New("invalid identifier")
)

// APIError is a non-success HTTP status or an error reported in the
// response body.
type APIError struct {
	StatusCode int
	Endpoint   string // esummary, esearch, idconv
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("NCBI %s error (status %d): %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("NCBI %s error: %s", e.Endpoint, e.Message)
}

// IsNotFound returns true if the error indicates a record was not found.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	return false
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
