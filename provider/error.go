package provider

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a provider failure. The scheduler decides per kind whether
// to retry the unit, fall back to source text, or abort the whole job.
type Kind int

const (
	// KindInvalid: malformed request or unusable response. Not retried.
	KindInvalid Kind = iota
	// KindUnauthorized: rejected credentials. Fatal for the whole job.
	KindUnauthorized
	// KindUnreachable: the provider endpoint cannot be reached at all
	// (DNS failure, connection refused). Fatal for the whole job — retrying
	// every remaining unit individually would only repeat the failure.
	KindUnreachable
	// KindRateLimited: 429 with an optional retry delay. Retried.
	KindRateLimited
	// KindTimeout: the call timed out or the provider returned a transient
	// 5xx. Retried.
	KindTimeout
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnauthorized:
		return "unauthorized"
	case KindUnreachable:
		return "unreachable"
	case KindRateLimited:
		return "rate-limited"
	case KindTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a classified provider failure.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	// RetryAfter is the delay the provider asked for on a rate limit.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider %s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("provider %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether another attempt for the same unit may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindTimeout
}

// Fatal reports whether the failure indicates the provider is unusable for
// every unit, so the job should abort instead of degrading unit by unit.
func (e *Error) Fatal() bool {
	return e.Kind == KindUnauthorized || e.Kind == KindUnreachable
}

// AsError extracts a classified provider error from an error chain.
func AsError(err error) (*Error, bool) {
	var perr *Error
	if errors.As(err, &perr) {
		return perr, true
	}
	return nil, false
}
