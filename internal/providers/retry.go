package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind tells callers whether a failed call may be retried.
type Kind int

const (
	// Transient failures (rate limits, timeouts, 5xx) may succeed on retry.
	Transient Kind = iota
	// Permanent failures (bad credentials, malformed requests) will not.
	Permanent
)

func (k Kind) String() string {
	if k == Transient {
		return "transient"
	}
	return "permanent"
}

// Error is the failure type returned by every provider.
type Error struct {
	Provider   string
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s error (HTTP %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == Transient
}

// IsAuthError checks if an error is an authentication error.
func IsAuthError(err error) bool {
	var pe *Error
	if !errors.As(err, &pe) {
		return false
	}
	return pe.StatusCode == http.StatusUnauthorized || pe.StatusCode == http.StatusForbidden
}

// classifyStatus maps an HTTP status to a failure kind.
func classifyStatus(code int) Kind {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return Transient
	case code >= 500:
		return Transient
	default:
		return Permanent
	}
}

func statusError(provider string, code int, body string) *Error {
	return &Error{
		Provider:   provider,
		Kind:       classifyStatus(code),
		StatusCode: code,
		Err:        fmt.Errorf("%s", truncate(body, 512)),
	}
}

// transportError wraps a failure that happened before a status was
// received. Cancellation by the caller is permanent; anything else on the
// wire is worth another try.
func transportError(provider string, err error) *Error {
	kind := Transient
	if errors.Is(err, context.Canceled) {
		kind = Permanent
	}
	return &Error{Provider: provider, Kind: kind, Err: err}
}

func permanentError(provider string, format string, args ...any) *Error {
	return &Error{Provider: provider, Kind: Permanent, Err: fmt.Errorf(format, args...)}
}

// Backoff returns the delay before retry number attempt (zero-based):
// base * 2^attempt, capped at max.
func Backoff(base time.Duration, attempt int, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
