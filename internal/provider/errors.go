package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// CallError classifies a provider call failure as transient or permanent.
type CallError struct {
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (e *CallError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "provider call failed")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *CallError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether a failed provider call may succeed on a later
// attempt. Timeouts and 5xx/429 responses are transient; everything else is
// treated as permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
