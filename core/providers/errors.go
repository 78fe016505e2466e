package providers

import (
	"fmt"
	"strings"
	"time"
)

// FailureKind classifies a single provider failure for failover decisions.
type FailureKind string

const (
	// FailureRateLimited marks a rate limit response (HTTP 429 and friends).
	FailureRateLimited FailureKind = "rate_limited"
	// FailureTimedOut marks a request that exceeded the provider's timeout.
	FailureTimedOut FailureKind = "timed_out"
	// FailureGeneric marks any other provider failure, including
	// unclassified errors.
	FailureGeneric FailureKind = "generic"
)

// Error is a single provider failure. The Router records these while failing
// over and collects them into an AggregateError when the capability is
// exhausted.
type Error struct {
	// Provider is the name of the provider that failed.
	Provider string
	// Kind classifies the failure.
	Kind FailureKind
	// RetryAfter is the rate limit hint, when the backend supplied one.
	RetryAfter time.Duration
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := ""
	switch e.Kind {
	case FailureRateLimited:
		msg = "rate limit exceeded"
		if e.RetryAfter > 0 {
			msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
		}
	case FailureTimedOut:
		msg = "request timed out"
	default:
		msg = "request failed"
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Provider, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Provider, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// NewRateLimitError builds a rate limit failure for a provider. retryAfter
// may be zero when the backend gave no hint.
func NewRateLimitError(provider string, retryAfter time.Duration, err error) *Error {
	return &Error{Provider: provider, Kind: FailureRateLimited, RetryAfter: retryAfter, Err: err}
}

// NewTimeoutError builds a timeout failure for a provider.
func NewTimeoutError(provider string, err error) *Error {
	return &Error{Provider: provider, Kind: FailureTimedOut, Err: err}
}

// NewError builds a generic failure for a provider.
func NewError(provider string, err error) *Error {
	return &Error{Provider: provider, Kind: FailureGeneric, Err: err}
}

// AggregateError is raised once every provider for a capability has failed
// within one Execute call. It carries every collected failure record in the
// order the providers were tried.
type AggregateError struct {
	Capability Capability
	Failures   []*Error
}

func (e *AggregateError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		names = append(names, failure.Provider)
	}
	return fmt.Sprintf("all %s providers failed: %s", e.Capability, strings.Join(names, ", "))
}

// Unwrap exposes the individual failures to errors.Is / errors.As.
func (e *AggregateError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, failure := range e.Failures {
		errs[i] = failure
	}
	return errs
}
