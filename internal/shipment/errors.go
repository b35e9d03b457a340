package shipment

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotFound            = errors.New("remote: shipment not found")
	ErrUpstreamUnavailable = errors.New("remote: host unreachable or transport failure")
	ErrUpstreamError       = errors.New("remote: internal error (5xx)")
	ErrUpstreamBadResponse = errors.New("remote: invalid response format or malformed data")
	ErrTimeout             = errors.New("remote: request timed out")
	ErrRetractRejected     = errors.New("remote: retraction rejected")
)

// APIError is a rich error type that wraps the sentinel errors with context.
type APIError struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error // nested lower-level error (e.g. net.Error)
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("shipment: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Sentinel
}
