package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Fallback messages shown when the server gave no usable message.
const (
	MsgGeneric = "Something went wrong. Please try again."
	MsgTimeout = "Request timed out. Please try again."
)

// Error is a NetworkError: a failed request with the server's status and
// message when available.
type Error struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("api: %s: %d %s", e.Op, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("api: %s: status %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("api: %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("api: %s failed", e.Op)
	}
}

// Unwrap exposes the transport cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable reports whether repeating the request may succeed: transport
// timeouts and 5xx/429 responses.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	if e.Status == http.StatusTooManyRequests || e.Status >= 500 {
		return true
	}
	return e.Status == 0 && isTimeout(e.Err)
}

// Message extracts a user-facing message from err: the server's message,
// else a timeout or generic fallback.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if isTimeout(err) {
		return MsgTimeout
	}
	return MsgGeneric
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
