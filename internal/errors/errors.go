// Package errors provides the API-layer error type of the promptsearch
// service: an error with context, a stack trace, and a status code that maps
// to both HTTP and JSON-RPC responses.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"

	"github.com/copyleftdev/promptsearch/internal/optimization"
)

// Code classifies an API error.
type Code int

const (
	CodeInternal Code = iota
	CodeInvalidRequest
	CodeInvalidParams
	CodeNotFound
	CodeConflict
	CodeMethodNotFound
	CodeParse
)

// HTTPStatus returns the HTTP status for c.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidRequest, CodeInvalidParams, CodeParse:
		return http.StatusBadRequest
	case CodeNotFound, CodeMethodNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RPCCode returns the JSON-RPC 2.0 error code for c.
func (c Code) RPCCode() int {
	switch c {
	case CodeParse:
		return -32700
	case CodeInvalidRequest:
		return -32600
	case CodeMethodNotFound:
		return -32601
	case CodeInvalidParams:
		return -32602
	case CodeNotFound:
		return -32001
	case CodeConflict:
		return -32002
	default:
		return -32000
	}
}

// Error represents an error with context and stack trace.
type Error struct {
	// Code classifies the error for transport responses
	Code Code
	// The underlying error that was returned
	Err error
	// A human-readable message describing the error
	Message string
	// The operation that was being performed when the error occurred
	Operation string
	// The component or package where the error occurred
	Component string
	// The stack trace
	Stack []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var builder strings.Builder

	if e.Message != "" {
		builder.WriteString(e.Message)
	}

	if e.Operation != "" {
		if builder.Len() > 0 {
			builder.WriteString(": ")
		}
		builder.WriteString("operation=")
		builder.WriteString(e.Operation)
	}

	if e.Component != "" {
		if builder.Len() > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString("component=")
		builder.WriteString(e.Component)
	}

	if e.Err != nil {
		if builder.Len() > 0 {
			builder.WriteString(": ")
		}
		builder.WriteString(e.Err.Error())
	}

	return builder.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithCode sets the error code.
func (e *Error) WithCode(code Code) *Error {
	e.Code = code
	return e
}

// WithOperation adds an operation to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Operation = op
	return e
}

// WithComponent adds a component to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// StackTrace returns the stack trace as a slice of strings.
func (e *Error) StackTrace() []string {
	return e.Stack
}

// New creates a new error with a code and message.
func New(code Code, msg string) *Error {
	return &Error{
		Code:    code,
		Message: msg,
		Stack:   getStackTrace(),
	}
}

// Errorf creates a new error with a formatted message.
func Errorf(code Code, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   getStackTrace(),
	}
}

// Wrap wraps an error with additional context. Optimization errors keep a
// code derived from their kind.
func Wrap(err error, msg string) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if !stderrors.As(err, &e) {
		return &Error{
			Code:    codeOf(err),
			Err:     err,
			Message: msg,
			Stack:   getStackTrace(),
		}
	}

	out := *e
	if msg != "" {
		out.Message = msg
		out.Err = err
	}
	return &out
}

func codeOf(err error) Code {
	switch {
	case stderrors.Is(err, optimization.ErrInvalidSearchSpace), stderrors.Is(err, optimization.ErrInvalidParameter):
		return CodeInvalidParams
	default:
		return CodeInternal
	}
}

// CodeOf returns the code of the first *Error in err's chain, or the code
// implied by an optimization error kind.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return codeOf(err)
}

// getStackTrace returns the current stack trace as a slice of strings.
func getStackTrace() []string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:]) // Skip runtime.Callers, getStackTrace, and the constructor
	if n == 0 {
		return nil
	}

	frames := runtime.CallersFrames(pcs[:n])
	stack := make([]string, 0, n)

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") && !strings.Contains(frame.File, "internal/errors") {
			stack = append(stack, fmt.Sprintf("%s\n\t%s:%d", frame.Function, frame.File, frame.Line))
		}
		if !more {
			break
		}
	}

	return stack
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return stderrors.As(err, target) }
