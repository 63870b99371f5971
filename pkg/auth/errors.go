package auth

import (
	"errors"
	"fmt"
)

// Kind classifies an authentication pipeline failure. Handlers translate
// kinds to HTTP status codes in exactly one place; pipeline stages only
// attach a kind and propagate.
type Kind int

const (
	// KindInternal is the fallback for unexpected store or signing failures.
	// The underlying cause is logged, never returned to the caller.
	KindInternal Kind = iota
	// KindValidation marks malformed input caught before any store access.
	KindValidation
	// KindUnauthenticated marks a failed credential or proof check. The
	// message is deliberately generic so callers cannot tell which check
	// failed.
	KindUnauthenticated
	// KindUnauthorized marks a valid identity with a missing or unknown API
	// key token.
	KindUnauthorized
	// KindConflict marks a duplicate-identity registration attempt.
	KindConflict
	// KindNotFound marks an unmatched route or missing resource.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a tagged pipeline error. Message is safe to show to callers;
// Err carries the internal cause for logging.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrValidation creates a validation error with a caller-visible message.
func ErrValidation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// ErrUnauthenticated creates a generic credential-failure error. The cause
// is retained for logs only.
func ErrUnauthenticated(cause error) *Error {
	return &Error{Kind: KindUnauthenticated, Message: "invalid credentials", Err: cause}
}

// ErrUnauthorized creates an authorization error with a caller-visible
// message.
func ErrUnauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// ErrConflict creates a duplicate-identity error.
func ErrConflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// ErrNotFound creates a not-found error.
func ErrNotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// ErrInternal wraps an unexpected failure. The caller-visible message is
// fixed; err is for logging.
func ErrInternal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// KindOf extracts the kind from an error chain. Untagged errors are
// internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// MessageOf extracts the caller-safe message from an error chain. Untagged
// errors get the generic internal message.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "internal server error"
}
