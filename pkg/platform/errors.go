package platform

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/multitenant/pkg/resilience"
)

// Kind classifies a resolution failure. The classification drives retry
// decisions and user-facing messages.
type Kind int

const (
	// KindUnknown covers unclassified failures; treated as retryable since
	// the cause may be transient.
	KindUnknown Kind = iota
	// KindNetwork is a transport-level failure reaching the platform API.
	KindNetwork
	// KindNotFound means the platform API has no tenant for the subdomain.
	KindNotFound
	// KindRateLimited means the platform API returned 429.
	KindRateLimited
	// KindUnavailable means the platform API returned a 5xx or the circuit
	// breaker is rejecting requests.
	KindUnavailable
	// KindTimeout means the request exceeded its deadline.
	KindTimeout
	// KindInvalidSubdomain means the subdomain failed validation before any
	// network call was made.
	KindInvalidSubdomain
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindInvalidSubdomain:
		return "invalid_subdomain"
	default:
		return "unknown"
	}
}

// ResolutionError describes a failed tenant resolution with enough context
// for retry decisions, logging and user-facing messages.
type ResolutionError struct {
	Kind        Kind
	Subdomain   string
	Attempt     int
	MaxAttempts int
	HTTPStatus  int
	RetryAfter  time.Duration
	Err         error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("tenant resolution for %q failed (%s)", e.Subdomain, e.Kind)
	if e.Attempt > 0 {
		msg += fmt.Sprintf(" on attempt %d/%d", e.Attempt, e.MaxAttempts)
	}
	if e.HTTPStatus > 0 {
		msg += fmt.Sprintf(" with status %d", e.HTTPStatus)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed. A missing tenant or
// an invalid subdomain will not appear through retrying; a breaker rejection
// must fail fast rather than hammer the open circuit.
func (e *ResolutionError) Retryable() bool {
	if e.Err != nil && errors.Is(e.Err, resilience.ErrCircuitOpen) {
		return false
	}
	switch e.Kind {
	case KindNotFound, KindInvalidSubdomain:
		return false
	default:
		return true
	}
}

// DelayHint returns the server-provided Retry-After value, if any. A positive
// hint takes precedence over computed backoff.
func (e *ResolutionError) DelayHint() time.Duration {
	return e.RetryAfter
}

// UserMessage returns a safe message for end users. It never leaks internal
// details such as upstream URLs or raw errors.
func (e *ResolutionError) UserMessage() string {
	switch e.Kind {
	case KindNotFound:
		return "This workspace does not exist. Check the address and try again."
	case KindInvalidSubdomain:
		return "The workspace address is not valid."
	case KindRateLimited:
		return "Too many requests. Please wait a moment and try again."
	case KindTimeout:
		return "The request timed out. Please try again."
	default:
		return "The service is temporarily unavailable. Please try again shortly."
	}
}
