package realtime

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a handler failure for the response envelope and the
// error metrics.
type ErrorKind string

const (
	ErrorValidation   ErrorKind = "validation"
	ErrorUnauthorized ErrorKind = "unauthorized"
	ErrorNotFound     ErrorKind = "not_found"
	ErrorRateLimited  ErrorKind = "rate_limited"
	ErrorDependency   ErrorKind = "dependency"
)

// Error is the failure type every event handler returns. Validation and
// authorization errors carry their message to the client verbatim; dependency
// errors are surfaced as a generic failure and logged with full context.
type Error struct {
	Kind    ErrorKind
	Message string
	Fields  []string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func NewValidationError(message string, fields ...string) *Error {
	return &Error{Kind: ErrorValidation, Message: message, Fields: fields}
}

func NewUnauthorizedError(message string) *Error {
	return &Error{Kind: ErrorUnauthorized, Message: message}
}

func NewNotFoundError(message string) *Error {
	return &Error{Kind: ErrorNotFound, Message: message}
}

func NewRateLimitError(policy string, retryAfter time.Duration) *Error {
	msg := fmt.Sprintf("rate limit exceeded (%s policy)", policy)
	if retryAfter > 0 {
		msg = fmt.Sprintf("%s, retry in %s", msg, retryAfter.Round(time.Second))
	}
	return &Error{Kind: ErrorRateLimited, Message: msg}
}

func NewDependencyError(message string, cause error) *Error {
	return &Error{Kind: ErrorDependency, Message: message, cause: cause}
}

// AsError converts any error into a *Error, wrapping unknown errors as
// dependency failures so no internal detail leaks into an envelope.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewDependencyError("internal error", err)
}
