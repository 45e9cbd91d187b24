package errors

import (
	stderr "errors"
	"fmt"
)

// AppError is the service-wide error type. Every error crossing a package
// boundary carries a stable id for log correlation and an optional cause.
type AppError struct {
	Id            string `json:"id"`
	DetailedError string `json:"detail"`
	cause         error
}

type Option func(*AppError)

// WithID sets a stable machine-readable error id, e.g.
// "exporter.storage.init.error".
func WithID(id string) Option {
	return func(e *AppError) {
		e.Id = id
	}
}

// WithCause attaches the underlying error for unwrapping.
func WithCause(cause error) Option {
	return func(e *AppError) {
		e.cause = cause
	}
}

func New(message string, opts ...Option) *AppError {
	err := &AppError{
		Id:            "exporter.internal.error",
		DetailedError: message,
	}
	for _, opt := range opts {
		opt(err)
	}
	return err
}

// Internal is an alias of New kept for call-site readability.
func Internal(message string, opts ...Option) *AppError {
	return New(message, opts...)
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s]: %s: %s", e.Id, e.DetailedError, e.cause.Error())
	}
	return fmt.Sprintf("[%s]: %s", e.Id, e.DetailedError)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Is / As re-export the stdlib helpers so callers only import this package.
func Is(err, target error) bool {
	return stderr.Is(err, target)
}

func As(err error, target any) bool {
	return stderr.As(err, target)
}
