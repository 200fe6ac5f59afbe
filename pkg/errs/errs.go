// Package errs defines the error-kind taxonomy shared by every layer of the
// orchestrator so callers can branch on failure class without string
// matching provider messages.
package errs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Unknown Kind = iota
	Authentication
	RateLimit
	InvalidRequest
	Server
	IO
	Serialization
	Argument
	State
	Cancellation
)

func (k Kind) String() string {
	switch k {
	case Authentication:
		return "authentication"
	case RateLimit:
		return "rate_limit"
	case InvalidRequest:
		return "invalid_request"
	case Server:
		return "server"
	case IO:
		return "io"
	case Serialization:
		return "serialization"
	case Argument:
		return "argument"
	case State:
		return "state"
	case Cancellation:
		return "cancellation"
	default:
		return "unknown"
	}
}

// Error wraps a cause with a Kind so a caller can recover the taxonomy via
// KindOf without inspecting the message text.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func New(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// KindOf extracts the Kind attached to err, if any *Error is present in its
// chain; ok is false for plain errors (e.g. context.Canceled), which
// propagate unconverted per the Cancellation policy.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return Unknown, false
}

func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
