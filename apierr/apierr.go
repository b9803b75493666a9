// Package apierr defines the typed failure variants produced by the PA-API
// client and consumed by the retry engine and orchestrator. A single Error
// struct with a Kind discriminator replaces per-kind error classes; payload
// fields are only meaningful for the kinds documented on them.
package apierr

import (
	"errors"
	"fmt"
	"time"
)

// Kind discriminates failure classes.
type Kind int

const (
	// KindFatal is an unclassified or terminal failure. Not retryable.
	KindFatal Kind = iota
	// KindAuthentication is a credential rejection. Terminal; the
	// orchestrator aborts and alerts on it.
	KindAuthentication
	// KindRateLimit is an upstream throttle. Always retryable; RetryAfter
	// carries the server-supplied delay when one was present.
	KindRateLimit
	// KindNotFound is a missing item or resource. Not retryable.
	KindNotFound
	// KindRetryable is a transient failure whose eligibility is carried
	// explicitly on the Retryable flag.
	KindRetryable
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindRateLimit:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindRetryable:
		return "retryable"
	default:
		return "fatal"
	}
}

// Error is a classified upstream failure.
type Error struct {
	Kind       Kind
	Message    string
	Code       string        // upstream error code, when reported
	StatusCode int           // HTTP status, when applicable
	RetryAfter time.Duration // server-supplied delay; KindRateLimit only
	Retryable  bool          // explicit eligibility; KindRetryable only
	Err        error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// As unwraps err into a typed *Error when one is present anywhere in the
// chain.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Authentication builds a terminal credential-rejection error.
func Authentication(message, code string) *Error {
	return &Error{Kind: KindAuthentication, Message: message, Code: code, StatusCode: 401}
}

// RateLimit builds a throttle error. retryAfter is zero when the server
// supplied no delay.
func RateLimit(message string, retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimit, Message: message, StatusCode: 429, RetryAfter: retryAfter}
}

// NotFound builds a missing-item error.
func NotFound(message, code string) *Error {
	return &Error{Kind: KindNotFound, Message: message, Code: code}
}

// Retryable builds a transient error with explicit retry eligibility.
func Retryable(message string, err error) *Error {
	return &Error{Kind: KindRetryable, Message: message, Retryable: true, Err: err}
}

// Fatal builds an unclassified terminal error.
func Fatal(message, code string, err error) *Error {
	return &Error{Kind: KindFatal, Message: message, Code: code, Err: err}
}
