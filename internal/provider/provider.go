package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

const (
	maxAttempts    = 2
	initialBackoff = 500 * time.Millisecond
)

// ErrorKind classifies provider failures so callers can decide on retry and
// user-facing degradation policy.
type ErrorKind string

const (
	ErrTimeout           ErrorKind = "timeout"
	ErrAuth              ErrorKind = "auth"
	ErrRateLimit         ErrorKind = "rate_limit"
	ErrMalformedResponse ErrorKind = "malformed_response"
)

// Error is a classified failure from an external provider call.
type Error struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classification of err if it is (or wraps) a provider Error.
func KindOf(err error) (ErrorKind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// retryable reports whether a single bounded retry is permitted for err.
// Timeouts and rate limits are retried; auth failures never are.
func retryable(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	return kind == ErrTimeout || kind == ErrRateLimit
}

// withRetry runs call, retrying once with backoff for timeout/rate-limit
// failures. Auth and malformed-response errors are returned immediately.
func withRetry(ctx context.Context, call func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if attempt < maxAttempts-1 {
			backoff := initialBackoff << attempt
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}

// classifyTransport maps transport-level failures onto the error taxonomy.
func classifyTransport(providerName string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Provider: providerName, Kind: ErrTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Provider: providerName, Kind: ErrTimeout, Err: err}
	}
	return fmt.Errorf("%s: %w", providerName, err)
}

// classifyStatus maps non-200 HTTP statuses onto the error taxonomy.
func classifyStatus(providerName string, status int, body string) error {
	switch status {
	case 401, 403:
		return &Error{Provider: providerName, Kind: ErrAuth, Err: fmt.Errorf("status %d", status)}
	case 429:
		return &Error{Provider: providerName, Kind: ErrRateLimit, Err: fmt.Errorf("status %d", status)}
	default:
		return fmt.Errorf("%s: unexpected status %d: %s", providerName, status, body)
	}
}
