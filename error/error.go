package error

import (
	"errors"
	"net"
	"strings"
)

// ErrOffline marks a verification attempt that failed for connectivity
// reasons. The guard treats it as "offline", never as a hard error, and
// falls back to the offline-grace path.
var ErrOffline = errors.New("license authority unreachable")

// ErrMalformedResponse marks a verify response that could not be decoded or
// carried an unknown status. It maps to a single ERROR cycle; the loop
// retries on the next interval.
var ErrMalformedResponse = errors.New("malformed verification response")

// ApiError is a custom error type to propagate HTTP status codes
// for strict error handling in the verifier.
type ApiError struct {
	StatusCode int
	Msg        string
}

func (e *ApiError) Error() string {
	return e.Msg
}

// IsConnectionError checks if an error is likely related to network connectivity
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrOffline) {
		return true
	}

	errStr := err.Error()

	// Check for known connection error messages
	connectionErrors := []string{
		"connection refused",
		"no such host",
		"host unreachable",
		"i/o timeout",
		"no route to host",
		"network is unreachable",
		"operation timed out",
		"EOF",
		"connection reset by peer",
		"dial tcp",
		"TLS handshake",
		"context deadline exceeded",
		"operation canceled",
	}

	for _, msg := range connectionErrors {
		if strings.Contains(strings.ToLower(errStr), strings.ToLower(msg)) {
			return true
		}
	}

	// Check for specific error types
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// Try to unwrap and check nested error
	unwrapped := errors.Unwrap(err)
	if unwrapped != nil && unwrapped != err {
		return IsConnectionError(unwrapped)
	}

	return false
}

// IsServerError checks if an error is related to a server error (5xx)
func IsServerError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 && apiErr.StatusCode < 600
	}

	return false
}
