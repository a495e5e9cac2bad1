// Package apperr classifies failures surfaced to the user.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind is a machine-readable failure class.
type Kind string

const (
	// KindUnknown is any failure that was not classified.
	KindUnknown Kind = "UNKNOWN"

	// KindValidation is a local input failure; no network call was made.
	KindValidation Kind = "VALIDATION"

	// KindAuth is a 401-class response; the session must be cleared.
	KindAuth Kind = "AUTH"

	// KindNetwork is a transport failure; it is transient and not persisted.
	KindNetwork Kind = "NETWORK"

	// KindServer is any other 4xx/5xx response.
	KindServer Kind = "SERVER"
)

// GenericMessage is shown when a failure carries no usable message.
const GenericMessage = "Something went wrong"

// Error is the classified error type.
type Error struct {
	Kind    Kind   // Failure class
	Status  int    // HTTP status for remote failures, 0 otherwise
	Message string // User-visible text, may be empty
	Cause   error  // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = GenericMessage
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a kind sentinel (ErrValidation, ErrAuth, ...)
// of the same kind. Any other *Error matches only itself.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.isKindSentinel() {
		return e.Kind == t.Kind
	}
	return e == t
}

func (e *Error) isKindSentinel() bool {
	return e.Message == "" && e.Status == 0 && e.Cause == nil
}

// Kind sentinels for errors.Is checks.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrNetwork    = &Error{Kind: KindNetwork}
	ErrServer     = &Error{Kind: KindServer}
)

// Validation creates a local validation failure.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Auth creates an authentication failure from a remote response.
func Auth(status int, message string) *Error {
	return &Error{Kind: KindAuth, Status: status, Message: message}
}

// Network wraps a transport failure.
func Network(cause error) *Error {
	return &Error{Kind: KindNetwork, Message: "Network error, please try again", Cause: cause}
}

// Server creates a failure from a non-auth error response.
func Server(status int, message string) *Error {
	return &Error{Kind: KindServer, Status: status, Message: message}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// UserMessage returns the text to show the user for err, falling back to
// GenericMessage when no classified message is available.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "Request cancelled"
	}
	return GenericMessage
}
