package optimization

import (
	"errors"
	"fmt"
)

// Kind sentinels. Use errors.Is against these to classify an *Error.
var (
	// ErrInvalidSearchSpace is returned when a search space has no roles or
	// styles, or contains duplicate names.
	ErrInvalidSearchSpace = errors.New("invalid search space")
	// ErrInvalidParameter is returned when an algorithm parameter is out of range.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrEvaluation wraps a failure reported by the Evaluator.
	ErrEvaluation = errors.New("evaluation failed")
	// ErrDegenerateFit reports that the surrogate could not be fit. It is
	// recoverable and never returned from Optimize.
	ErrDegenerateFit = errors.New("degenerate surrogate fit")
	// ErrBudgetExhausted is returned by the cache when the run budget expires
	// while a retry loop is waiting.
	ErrBudgetExhausted = errors.New("budget exhausted")
)

// Error represents an optimization error with context
// that can be wrapped with additional information.
type Error struct {
	// Kind is one of the package sentinels, if any.
	Kind error
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Component is the component where the error occurred.
	Component string
	// Err is the underlying error that triggered this one, if any.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	if e.Component != "" && e.Op != "" {
		prefix = fmt.Sprintf("%s: %s", e.Component, e.Op)
	} else if e.Component != "" {
		prefix = e.Component
	} else if e.Op != "" {
		prefix = e.Op
	}

	msg := e.Message
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}

	if e.Err != nil {
		if prefix != "" {
			return fmt.Sprintf("%s: %s: %v", prefix, msg, e.Err)
		}
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}

	if prefix != "" {
		return fmt.Sprintf("%s: %s", prefix, msg)
	}
	return msg
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	if e == nil || e.Kind == nil {
		return false
	}
	return e.Kind == target
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent adds component context to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// WithKind classifies the error.
func (e *Error) WithKind(kind error) *Error {
	e.Kind = kind
	return e
}

// NewError creates a new optimization error with the given message.
func NewError(message string) *Error {
	return &Error{
		Message: message,
	}
}

// NewErrorf creates a new optimization error with formatted message.
func NewErrorf(format string, args ...interface{}) *Error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps an existing error with additional context.
// If err is nil, WrapError returns nil.
func WrapError(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: message,
		Err:     err,
	}
}

// WrapErrorf wraps an existing error with additional formatted context.
// If err is nil, WrapErrorf returns nil.
func WrapErrorf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// IsOptimizationError checks if an error is of type Error.
// If the error is an optimization error, it returns the error and true.
// Otherwise, it returns nil and false.
func IsOptimizationError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// InvalidParameter builds an ErrInvalidParameter error. Strategy packages use
// it to report out-of-range configuration values.
func InvalidParameter(component, format string, args ...interface{}) error {
	return NewErrorf(format, args...).
		WithKind(ErrInvalidParameter).
		WithComponent(component).
		WithOperation("validate")
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks an evaluator error as non-retryable. The cache records a
// failed trial on the first occurrence instead of backing off.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
