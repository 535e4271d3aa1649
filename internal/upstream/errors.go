package upstream

import (
	"errors"
	"fmt"
)

// ErrorKind classifies upstream failures for logs and metrics. Callers of the
// proxy never see the distinction.
type ErrorKind string

const (
	KindRefresh   ErrorKind = "refresh"   // handshake exhausted its retries
	KindForbidden ErrorKind = "forbidden" // session rejected, token cleared
	KindFetch     ErrorKind = "fetch"     // any other network or status failure
)

// FetchError represents a failed upstream interaction
type FetchError struct {
	Kind     ErrorKind
	Endpoint string // "handshake", "index", "quote", "trade_info"
	Status   int    // HTTP status when one was received
	Message  string
	Cause    error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s error on %s: %s", e.Kind, e.Endpoint, e.Message)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

func newRefreshError(attempts int, cause error) *FetchError {
	return &FetchError{
		Kind:     KindRefresh,
		Endpoint: "handshake",
		Message:  fmt.Sprintf("no session cookie after %d attempts", attempts),
		Cause:    cause,
	}
}

func newForbiddenError(endpoint string, status int) *FetchError {
	return &FetchError{
		Kind:     KindForbidden,
		Endpoint: endpoint,
		Status:   status,
		Message:  "session rejected by upstream",
	}
}

func newFetchError(endpoint, message string, status int, cause error) *FetchError {
	return &FetchError{Kind: KindFetch, Endpoint: endpoint, Status: status, Message: message, Cause: cause}
}

// KindOf returns the kind of err, defaulting to KindFetch for foreign errors
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindFetch
}

// IsForbidden reports whether err is a rejected-session failure
func IsForbidden(err error) bool {
	return err != nil && KindOf(err) == KindForbidden
}

// IsRefreshFailure reports whether err is an exhausted handshake
func IsRefreshFailure(err error) bool {
	return err != nil && KindOf(err) == KindRefresh
}
