// Package errors augments the standard errors
// provided by fmt (https://golang.org/src/fmt/errors.go)
// with a Wrap() method to wrap errors without resorting
// to fmt.Errorf("%w", err).
package errors

import (
	stderr "errors"
	"fmt"
)

var _ error = New("")

// New Error
func New(msg string) *Error {
	return &Error{msg: msg}
}

// Errorf builds a new Error with a formatted message.
//
// Unlike fmt.Errorf, the %w verb is not interpreted: use Wrap to nest a cause.
func Errorf(format string, args ...interface{}) *Error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// Error augments the standard error interface with a Wrap method.
//
// The main difference with github.com/pkg/errors is that we are wrapping
// errors from errors, not from text.
type Error struct {
	msg  string
	err  error
	code int
}

// Error message
func (e *Error) Error() string {
	return e.msg
}

// Unwrap nested error
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Wrap a nested error.
//
// Wrap mutates the receiver: never call it on a package-level sentinel.
func (e *Error) Wrap(err error) *Error {
	e.err = err
	return e
}

// WithCode attaches a process exit code to this error
func (e *Error) WithCode(code int) *Error {
	e.code = code
	return e
}

// Is of some error type?
func (e *Error) Is(target error) bool {
	return e == target || e.err == target
}

// As finds the first error in err's chain that matches target, and if so, sets target to that error value and returns true.
// (a shortcut to standard lib errors.As)
func As(err error, target interface{}) bool {
	return stderr.As(err, target)
}

// Is reports whether any error in err's chain matches target
// (a shortcut to standard lib errors.As)
func Is(err, target error) bool {
	return stderr.Is(err, target)
}

// Code returns the first exit code found in the chain of err, or 0
func Code(err error) int {
	for err != nil {
		if e, ok := err.(*Error); ok && e.code != 0 {
			return e.code
		}
		err = stderr.Unwrap(err)
	}
	return 0
}

// Detail builds a fresh error with message "msg: cause" that wraps the sentinel.
//
// The sentinel remains reachable with Is(). The cause is only rendered in the message.
func Detail(sentinel *Error, msg string, cause error) *Error {
	if cause == nil {
		return New(msg).Wrap(sentinel)
	}
	return New(fmt.Sprintf("%s: %v", msg, cause)).Wrap(sentinel)
}
