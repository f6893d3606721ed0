package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrConflict         = errors.New("identity conflict")
	ErrNotFound         = errors.New("not found")
	ErrExpired          = errors.New("expired")
	ErrMismatch         = errors.New("challenge mismatch")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidSession   = errors.New("invalid session")
	ErrAnswerLength     = errors.New("answer length out of bounds")
	ErrRateLimited      = errors.New("rate limited")
)

// Error is a domain error with a message meant for the caller.
// It unwraps to one of the sentinel kinds above.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Errorf builds an *Error of the given kind
func Errorf(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// RateLimitError is returned when a submission arrives inside the cool-down window
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("please wait %d seconds before submitting this quest again", e.Seconds())
}

// Seconds is RetryAfter rounded to whole seconds, at least one
func (e *RateLimitError) Seconds() int {
	secs := int(e.RetryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}
