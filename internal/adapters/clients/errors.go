// Package clients provides the instrumented HTTP client used to reach the
// remote quote source.
package clients

import "errors"

// Transport-level failures. The acl package maps them to domain errors.
var (
	// ErrCircuitOpen is returned without sending when the breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrMaxRetriesExceeded wraps the last failure once every attempt is spent.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)
