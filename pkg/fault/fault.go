// Package fault classifies upstream failures into a small taxonomy that
// drives retry and breaker decisions.
package fault

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind tags an upstream failure.
type Kind int

// Failure kinds, from most to least recoverable.
const (
	Unknown Kind = iota
	Transient
	RateLimited
	Auth
	Malformed
	Permanent
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case RateLimited:
		return "rate_limited"
	case Auth:
		return "auth"
	case Malformed:
		return "malformed"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Error is a classified failure of one operation.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a classified error from a message.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// FromStatus maps an HTTP status code to a kind. 2xx and 3xx map to Unknown.
func FromStatus(status int) Kind {
	switch {
	case status == 429:
		return RateLimited
	case status == 401 || status == 403:
		return Auth
	case status == 408 || status >= 500:
		return Transient
	case status >= 400:
		return Permanent
	default:
		return Unknown
	}
}

// KindOf extracts the kind of err. Unclassified network and deadline
// errors count as transient, context cancellation as permanent.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.Canceled) {
		return Permanent
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return Transient
	}
	return Unknown
}

// IsRetryable reports whether another attempt may succeed.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case Transient, Malformed:
		return true
	default:
		return false
	}
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
