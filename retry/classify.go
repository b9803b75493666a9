package retry

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/curately/pricesync/apierr"
)

// Substring signatures for errors that reach us untyped. Typed checks run
// first; this layer exists only for legacy error sources and can be removed
// without touching the typed contract.
var (
	transientSignatures = []string{
		"network", "timeout", "timed out", "connection reset", "connection refused",
		"econnreset", "etimedout", "econnrefused", "broken pipe", "eof",
	}
	rateLimitSignatures = []string{
		"rate limit", "too many requests", "throttl", "429",
	}
	serverErrorSignatures = []string{
		"502", "503", "504", "bad gateway", "service unavailable", "gateway timeout",
	}
	authSignatures = []string{
		"401", "403", "unauthorized", "forbidden", "authentication failed",
	}
	notFoundSignatures = []string{
		"404", "not found",
	}
)

// IsRetryable reports whether err is worth retrying. Classification order:
// typed variants first, then message heuristics, defaulting to false so
// unknown failure modes are never masked by blind retries.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if apiErr, ok := apierr.As(err); ok {
		switch apiErr.Kind {
		case apierr.KindRateLimit:
			return true
		case apierr.KindAuthentication, apierr.KindNotFound:
			return false
		case apierr.KindRetryable:
			return apiErr.Retryable
		case apierr.KindFatal:
			return false
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, transientSignatures):
		return true
	case containsAny(msg, rateLimitSignatures):
		return true
	case containsAny(msg, serverErrorSignatures):
		return true
	case containsAny(msg, authSignatures):
		return false
	case containsAny(msg, notFoundSignatures):
		return false
	}
	return false
}

var retryAfterPattern = regexp.MustCompile(`(?i)retry after (\d+)`)

// RetryAfterDelay extracts a server-supplied retry delay from err. A typed
// rate-limit delay wins; otherwise the message is scraped for a
// "retry after N" clause, which is assumed to be seconds.
func RetryAfterDelay(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	if apiErr, ok := apierr.As(err); ok && apiErr.Kind == apierr.KindRateLimit && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter, true
	}
	if m := retryAfterPattern.FindStringSubmatch(err.Error()); m != nil {
		seconds, convErr := strconv.Atoi(m[1])
		if convErr == nil {
			return time.Duration(seconds) * time.Second, true
		}
	}
	return 0, false
}

func containsAny(msg string, signatures []string) bool {
	for _, s := range signatures {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
