package errors

import (
	stderrors "errors"
	"fmt"
)

// Code categorizes errors raised by the session runtime.
type Code string

const (
	// CodeSessionNotFound means recovery found no open session; terminal for the controller.
	CodeSessionNotFound Code = "SESSION_NOT_FOUND"

	// CodeInvalidTransition means the state machine rejected an event.
	CodeInvalidTransition Code = "INVALID_TRANSITION"

	// CodePersistenceFailure means a store write failed; the command may be retried.
	CodePersistenceFailure Code = "PERSISTENCE_FAILURE"

	// CodeTimerMisuse means the rest timer cannot perform the operation in its current state.
	CodeTimerMisuse Code = "TIMER_MISUSE"

	// CodeInvalidCommand means the command arguments do not match the loaded session.
	CodeInvalidCommand Code = "INVALID_COMMAND"
)

type RuntimeError struct {
	Code    Code
	Message string
	Err     error
}

func (e *RuntimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func NewRuntime(code Code, message string) *RuntimeError {
	return &RuntimeError{Code: code, Message: message}
}

func WrapRuntime(code Code, message string, err error) *RuntimeError {
	return &RuntimeError{Code: code, Message: message, Err: err}
}

func SessionNotFound(message string) *RuntimeError {
	return NewRuntime(CodeSessionNotFound, message)
}

func InvalidTransition(message string) *RuntimeError {
	return NewRuntime(CodeInvalidTransition, message)
}

func PersistenceFailure(op string, err error) *RuntimeError {
	return WrapRuntime(CodePersistenceFailure, op, err)
}

func TimerMisuse(message string) *RuntimeError {
	return NewRuntime(CodeTimerMisuse, message)
}

func InvalidCommand(message string) *RuntimeError {
	return NewRuntime(CodeInvalidCommand, message)
}

// CodeOf extracts the runtime code from a possibly wrapped error.
func CodeOf(err error) (Code, bool) {
	var re *RuntimeError
	if stderrors.As(err, &re) {
		return re.Code, true
	}
	return "", false
}

func IsCode(err error, code Code) bool {
	got, ok := CodeOf(err)
	return ok && got == code
}
