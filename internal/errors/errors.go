// Package errors is the application error type: a message with a stable
// dotted id, a coarse code and an optional cause. It re-exports the
// standard helpers so callers import a single package.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

var (
	Is     = stderrors.Is
	As     = stderrors.As
	Join   = stderrors.Join
	Unwrap = stderrors.Unwrap
)

// ErrCode classifies an error for exit codes and history records.
type ErrCode int

const (
	CodeUnknown ErrCode = iota
	CodeInvalidArgument
	CodeNotFound
	CodeAlreadyExists
	CodeUnavailable
	CodeDeadlineExceeded
	CodeCanceled
	CodeInternal
)

func (c ErrCode) String() string {
	switch c {
	case CodeInvalidArgument:
		return "invalid_argument"
	case CodeNotFound:
		return "not_found"
	case CodeAlreadyExists:
		return "already_exists"
	case CodeUnavailable:
		return "unavailable"
	case CodeDeadlineExceeded:
		return "deadline_exceeded"
	case CodeCanceled:
		return "canceled"
	case CodeInternal:
		return "internal"
	default:
		return "unknown"
	}
}

type Error struct {
	ID      string
	Message string
	Code    ErrCode
	Details string
	Cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.ID != "" {
		b.WriteString("[")
		b.WriteString(e.ID)
		b.WriteString("] ")
	}
	b.WriteString(e.Message)
	if e.Details != "" {
		b.WriteString(": ")
		b.WriteString(e.Details)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

type Option func(*Error)

func WithID(id string) Option {
	return func(e *Error) { e.ID = id }
}

func WithCause(err error) Option {
	return func(e *Error) { e.Cause = err }
}

func WithCode(code ErrCode) Option {
	return func(e *Error) { e.Code = code }
}

func WithDetails(format string, args ...any) Option {
	return func(e *Error) { e.Details = fmt.Sprintf(format, args...) }
}

// New builds an *Error. Without WithCode the code is CodeUnknown.
func New(msg string, opts ...Option) *Error {
	e := &Error{Message: msg}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Internal is New with CodeInternal.
func Internal(msg string, opts ...Option) *Error {
	return New(msg, append([]Option{WithCode(CodeInternal)}, opts...)...)
}

// Code returns the code of the outermost *Error in err's chain.
func Code(err error) ErrCode {
	var e *Error
	if As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// ID returns the id of the outermost *Error in err's chain.
func ID(err error) string {
	var e *Error
	if As(err, &e) {
		return e.ID
	}
	return ""
}

// Details returns the details of the outermost *Error in err's chain.
func Details(err error) string {
	var e *Error
	if As(err, &e) {
		return e.Details
	}
	return ""
}
