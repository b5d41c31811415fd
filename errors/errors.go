package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// DriverError is a result code with a customizable error message.
type DriverError interface {
	error
	Code() Code
	WithMessage(message string) DriverError
	Wrap(err error) DriverError
	Unwrap() error
}

type driverError struct {
	code          Code
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a string
// describing the error.
func (e driverError) Error() string {
	if e.message != "" {
		return e.message
	}
	return StrError(e.code)
}

func (e driverError) Code() Code {
	return e.code
}

func (e driverError) Unwrap() error {
	return e.originalError
}

// Is reports a match against any bare sentinel with the same code, so errors
// built with WithMessage or Wrap still satisfy `errors.Is(err, ErrNoSpace)`.
func (e driverError) Is(target error) bool {
	other, ok := target.(driverError)
	if !ok {
		return false
	}
	return other.code == e.code && other.originalError == nil &&
		other.message == StrError(other.code)
}

// WithMessage returns a new error with the same code whose message is this
// error's message followed by `message`.
func (e driverError) WithMessage(message string) DriverError {
	return driverError{
		code:          e.code,
		message:       fmt.Sprintf("%s: %s", e.Error(), message),
		originalError: e,
	}
}

// Wrap returns a new error with the same code that also matches `err` under
// errors.Is and errors.As.
func (e driverError) Wrap(err error) DriverError {
	return driverError{
		code:          e.code,
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

// New creates a new [DriverError] with a default message derived from the
// result code.
func New(code Code) DriverError {
	return driverError{
		code:    code,
		message: StrError(code),
	}
}

// NewFromError creates a DriverError that wraps an error from outside the
// engine, typically from the host file system.
func NewFromError(code Code, originalError error) DriverError {
	return driverError{
		code:          code,
		message:       fmt.Sprintf("%s: %s", StrError(code), originalError.Error()),
		originalError: originalError,
	}
}

// CodeOf gives the result code carried by `err`. A nil error is Success, and
// an error that didn't come from the engine is Fail.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}

	var driverErr DriverError
	if stderrors.As(err, &driverErr) {
		return driverErr.Code()
	}
	return Fail
}
