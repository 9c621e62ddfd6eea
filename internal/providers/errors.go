package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind classifies a provider failure. Retry policy is driven by kind,
// never by matching on error message text.
type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindTimeout     ErrorKind = "timeout"
	KindNetwork     ErrorKind = "network"
	KindServer      ErrorKind = "server"
	KindAuth        ErrorKind = "auth"
	KindBadRequest  ErrorKind = "bad_request"
	KindCanceled    ErrorKind = "canceled"
	KindUnknown     ErrorKind = "unknown"
)

// DefaultRecoverableKinds are the kinds retried unless configured otherwise.
var DefaultRecoverableKinds = []ErrorKind{KindRateLimited, KindTimeout, KindNetwork, KindServer}

// ParseErrorKind converts a config string to an ErrorKind.
// Returns KindUnknown for unrecognized values.
func ParseErrorKind(s string) ErrorKind {
	switch ErrorKind(s) {
	case KindRateLimited, KindTimeout, KindNetwork, KindServer, KindAuth, KindBadRequest, KindCanceled:
		return ErrorKind(s)
	default:
		return KindUnknown
	}
}

// APIError is a classified failure from a generation provider.
type APIError struct {
	Provider   string
	Kind       ErrorKind
	Status     int           // HTTP status, 0 if not applicable
	Message    string
	RetryAfter time.Duration // Server-suggested wait, 0 if none
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Provider, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

// KindOf extracts the error kind from err. Context cancellation and deadline
// errors map to KindCanceled/KindTimeout; anything unclassified is KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// RetryAfterOf returns the server-suggested retry delay, if err carries one.
func RetryAfterOf(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

// RecoverableIn builds a classifier that reports whether an error's kind is
// in the given set. The set comes from configuration, making retry behavior
// explicit rather than inferred.
func RecoverableIn(kinds []ErrorKind) func(error) bool {
	set := make(map[ErrorKind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return func(err error) bool {
		return set[KindOf(err)]
	}
}

// classifyStatus maps an HTTP status code to an error kind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindServer
	case status >= 400:
		return KindBadRequest
	default:
		return KindUnknown
	}
}

// classifyTransportErr maps a transport-level error (no HTTP response) to a kind.
func classifyTransportErr(err error) ErrorKind {
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindNetwork
	}
}
