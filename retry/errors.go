package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// Class is how a failed remote call is treated by Do.
type Class int

const (
	// Fatal errors are returned immediately.
	Fatal Class = iota
	// Throttling errors (rate limits) are retried with backoff.
	Throttling
	// Transient errors (timeouts, dropped connections, 5xx) are retried with backoff.
	TransientFailure
)

func (c Class) String() string {
	switch c {
	case Throttling:
		return "throttling"
	case TransientFailure:
		return "transient"
	default:
		return "fatal"
	}
}

// RemoteError tags an error returned by a remote collaborator with its class.
type RemoteError struct {
	Op         string
	Class      Class
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s error (status %d): %v", e.Op, e.Class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Class, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Throttled marks err as a rate-limit rejection.
func Throttled(op string, err error) error {
	return &RemoteError{Op: op, Class: Throttling, Err: err}
}

// Transient marks err as a retryable remote failure.
func Transient(op string, err error) error {
	return &RemoteError{Op: op, Class: TransientFailure, Err: err}
}

// Permanent marks err as a remote failure that must not be retried.
func Permanent(op string, err error) error {
	return &RemoteError{Op: op, Class: Fatal, Err: err}
}

// FromStatus classifies an unsuccessful HTTP response: 429 is throttling,
// 408 and 5xx are transient, anything else is permanent.
func FromStatus(op string, status int, err error) error {
	class := Fatal
	switch {
	case status == http.StatusTooManyRequests:
		class = Throttling
	case status == http.StatusRequestTimeout, status >= 500:
		class = TransientFailure
	}
	return &RemoteError{Op: op, Class: class, StatusCode: status, Err: err}
}

// Classify returns the class of err. Errors not tagged with a RemoteError
// are transient when they look like network trouble and fatal otherwise.
func Classify(err error) Class {
	if err == nil {
		return Fatal
	}

	var re *RemoteError
	if errors.As(err, &re) {
		return re.Class
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) {
		return TransientFailure
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return TransientFailure
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return TransientFailure
	}

	return Fatal
}

// Retryable reports whether Do would retry err.
func Retryable(err error) bool {
	return Classify(err) != Fatal
}
