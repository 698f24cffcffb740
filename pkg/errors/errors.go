package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"

	"github.com/pkg/errors"
)

// New returns an error with the supplied message and the current stack.
func New(message string) error {
	return errors.New(message)
}

// Errorf formats according to a format specifier and records the stack.
func Errorf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}

// Wrap annotates err with message. Wrap returns nil if err is nil.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with the format specifier. Wrapf returns nil if err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// WithStack annotates err with a stack trace at the point WithStack was called.
func WithStack(err error) error {
	return errors.WithStack(err)
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Cause returns the innermost error that does not provide a Cause method.
func Cause(err error) error {
	return errors.Cause(err)
}

// NewWithReport creates an error and reports it to the registered reporters.
func NewWithReport(message string) error {
	err := errors.New(message)
	report(err)
	return err
}

// ErrorfAndReport formats an error and reports it to the registered reporters.
func ErrorfAndReport(format string, args ...interface{}) error {
	err := errors.Errorf(format, args...)
	report(err)
	return err
}

// WrapAndReport wraps err and reports it. Returns nil if err is nil.
func WrapAndReport(err error, message string) error {
	if err == nil {
		return nil
	}
	err = errors.Wrap(err, message)
	report(err)
	return err
}

// WrapfAndReport wraps err with the format specifier and reports it.
func WrapfAndReport(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	err = errors.Wrapf(err, format, args...)
	report(err)
	return err
}

// WithStackAndReport records the stack on err and reports it.
func WithStackAndReport(err error) error {
	if err == nil {
		return nil
	}
	err = errors.WithStack(err)
	report(err)
	return err
}

type stack []uintptr

const maxStackDepth = 32

func callers() stack {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(2, pcs)
	return pcs[:n]
}

// fullStack renders every frame as "function file:line".
func (s stack) fullStack() []string {
	frames := runtime.CallersFrames(s)
	out := make([]string, 0, len(s))
	for {
		frame, more := frames.Next()
		out = append(out, fmt.Sprintf("%s %s:%d", frame.Function, frame.File, frame.Line))
		if !more {
			break
		}
	}
	return out
}
