package engine

import (
	"errors"
	"fmt"
)

// Error is returned by Invoke when a message could not be acted on.
//
// None of these reach the program under analysis: the dispatcher logs them
// and, since the message was not rewritten, falls back to the real routine.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Channel is the channel the message was addressed to.
	Channel string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeNoHandler indicates no handler is registered for the channel.
	ErrCodeNoHandler ErrorCode = "NO_HANDLER"

	// ErrCodeBadMessage indicates the message could not be decoded.
	ErrCodeBadMessage ErrorCode = "BAD_MESSAGE"

	// ErrCodeFault indicates the handler touched unmapped guest memory.
	ErrCodeFault ErrorCode = "FAULT"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s (channel=%s)", e.Code, e.Message, e.Channel)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsNoHandler reports whether err is an ErrCodeNoHandler error.
func IsNoHandler(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeNoHandler
	}
	return false
}

// IsFault reports whether err is an ErrCodeFault error.
func IsFault(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeFault
	}
	return false
}
