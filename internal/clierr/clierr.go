// Package clierr defines structured error types for taskwatch commands.
// Errors carry a machine-readable code, a human-readable message,
// optional details, and an optional wrapped cause.
package clierr

import (
	"fmt"
	"strconv"
)

// Error codes are stable across minor versions.
const (
	TaskNotFound      = "TASK_NOT_FOUND"
	TaskfileNotFound  = "TASKFILE_NOT_FOUND"
	NoWorkspace       = "NO_WORKSPACE"
	NotInstalled      = "NOT_INSTALLED"
	AlreadyRunning    = "ALREADY_RUNNING"
	EnumerationFailed = "ENUMERATION_FAILED"
	ServiceFailed     = "SERVICE_FAILED"
	ConfigExists      = "CONFIG_ALREADY_EXISTS"
	InvalidInput      = "INVALID_INPUT"
	InvalidPosition   = "INVALID_POSITION"
	InternalError     = "INTERNAL_ERROR"
)

// Error represents a structured error with a machine-readable code.
type Error struct {
	Code    string
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *Error) Error() string { return e.Message }

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// New creates an Error with the given code and message.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error whose message is prefixed onto the cause's message.
// errors.Is and errors.As still reach the cause.
func Wrap(code string, cause error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return &Error{Code: code, Message: msg, cause: cause}
}

// WithDetails returns the error with the given details map attached.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// ExitCode returns 2 for InternalError, 1 for all others.
func (e *Error) ExitCode() int {
	if e.Code == InternalError {
		return 2 //nolint:mnd // exit code 2 for internal errors
	}
	return 1
}

// SilentError signals an exit code without additional output.
// Used when the outcome was already reported (e.g. a task's own exit status).
type SilentError struct {
	Code int
}

// Error implements the error interface.
func (e *SilentError) Error() string { return "exit " + strconv.Itoa(e.Code) }
