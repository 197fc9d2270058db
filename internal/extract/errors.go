package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error is an extraction failure with a reason fit for the requester.
type Error struct {
	Reason    string
	Retryable bool
	Err       error
}

func (e *Error) Error() string { return e.Reason }
func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err is an extraction failure worth retrying.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}

var authMarkers = []string{"login", "private", "authentication"}

var transientMarkers = []string{
	"timed out",
	"timeout",
	"connection reset",
	"connection refused",
	"temporary failure in name resolution",
	"http error 429",
	"too many requests",
	"http error 500",
	"http error 502",
	"http error 503",
	"http error 504",
}

func containsAny(s string, markers []string) bool {
	s = strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// classify wraps a tool failure. Deadline overruns and network or server-side
// faults are retryable. Auth-class failures are rewritten into a remediation
// message when the platform has a bundle name and the cookies directory can
// be found; otherwise the raw reason is kept.
func classify(err error, url string, cookies Cookies) *Error {
	reason := err.Error()
	e := &Error{Reason: reason, Err: err}

	if errors.Is(err, context.DeadlineExceeded) {
		e.Reason = "extraction timed out"
		e.Retryable = true
		return e
	}
	if containsAny(reason, authMarkers) {
		if p, ok := platformFor(url); ok && cookies.Available() {
			e.Reason = authRemediation(p, reason)
		}
		return e
	}
	e.Retryable = containsAny(reason, transientMarkers)
	return e
}

func authRemediation(p Platform, reason string) string {
	return fmt.Sprintf("%s authentication required.\n\n"+
		"Original error: %s\n\n"+
		"To fix this:\n"+
		"1. Export %s cookies using a browser extension\n"+
		"2. Save them as '%s' in the cookies directory\n"+
		"3. Restart the worker",
		p.Name, reason, p.Name, p.Bundle)
}
