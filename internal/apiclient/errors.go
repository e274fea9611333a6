package apiclient

import (
	"errors"
	"fmt"
)

// Kind classifies a failed backend call.
type Kind int

const (
	// KindNetwork covers transport failures, timeouts and unreadable responses.
	KindNetwork Kind = iota + 1
	// KindRejected is a 4xx answer, e.g. validation or unknown id.
	KindRejected
	// KindServer is a 5xx answer.
	KindServer
)

var (
	ErrNetwork  = errors.New("backend unreachable")
	ErrRejected = errors.New("request rejected by backend")
	ErrServer   = errors.New("backend server error")
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRejected:
		return "rejected"
	case KindServer:
		return "server"
	}
	return "unknown"
}

// Retryable reports whether the UI should offer a retry for this kind.
func (k Kind) Retryable() bool {
	return k == KindNetwork || k == KindServer
}

func (k Kind) sentinel() error {
	switch k {
	case KindNetwork:
		return ErrNetwork
	case KindRejected:
		return ErrRejected
	case KindServer:
		return ErrServer
	}
	return nil
}

// Error is returned by every Client method that fails.
type Error struct {
	Kind    Kind
	Op      string // e.g. "POST /api/transactions"
	Status  int    // 0 for network failures
	Message string // backend-provided text, if any
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s: %d %s", e.Op, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op + ": " + e.Kind.String() + " failure"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind, so callers can write
// errors.Is(err, apiclient.ErrRejected).
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// KindOf extracts the failure kind from err.
func KindOf(err error) (Kind, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return 0, false
}

// UserMessage renders err for display next to a form or row.
func UserMessage(err error) string {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return "Something went wrong"
	}
	switch apiErr.Kind {
	case KindRejected:
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return "The request was rejected"
	case KindServer:
		return "The server failed to process the request"
	}
	return "Could not reach the server"
}
