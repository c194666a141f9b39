package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a provider failure for retry decisions.
type ErrorKind string

const (
	// KindRateLimited means the provider throttled the request (HTTP 429).
	KindRateLimited ErrorKind = "rate_limited"
	// KindConflict means the provider is busy with a conflicting operation,
	// e.g. a model still training (HTTP 409).
	KindConflict ErrorKind = "conflict"
	// KindTransient covers server errors and network failures.
	KindTransient ErrorKind = "transient"
	// KindFatal is never retried.
	KindFatal ErrorKind = "fatal"
)

// Retryable reports whether a failure of this kind may succeed on retry.
func (k ErrorKind) Retryable() bool {
	return k != KindFatal
}

// Error is a classified provider failure.
type Error struct {
	Kind       ErrorKind
	StatusCode int // 0 for network failures
	RetryAfter int // seconds, from the Retry-After header
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s (HTTP %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, KindFatal for errors that are not a
// provider *Error.
func KindOf(err error) ErrorKind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindFatal
}

// kindForStatus maps an HTTP status to an ErrorKind.
func kindForStatus(code int) ErrorKind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusConflict:
		return KindConflict
	case code >= 500:
		return KindTransient
	default:
		return KindFatal
	}
}
