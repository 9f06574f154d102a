package errors

import (
	stderrors "errors"
	"net/http"
)

type APIError struct {
	Status  int         `json:"-"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func New(status int, code, message string) *APIError {
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func Internal(message string) *APIError {
	if message == "" {
		message = "internal server error"
	}
	return New(http.StatusInternalServerError, "internal_error", message)
}

func BadRequest(code, message string) *APIError {
	return New(http.StatusBadRequest, code, message)
}

func Unauthorized(message string) *APIError {
	if message == "" {
		message = "unauthorized"
	}
	return New(http.StatusUnauthorized, "unauthorized", message)
}

func NotFound(code, message string) *APIError {
	return New(http.StatusNotFound, code, message)
}

func Conflict(code, message string, details interface{}) *APIError {
	err := New(http.StatusConflict, code, message)
	err.Details = details
	return err
}

func Unavailable(code, message string) *APIError {
	return New(http.StatusServiceUnavailable, code, message)
}

// FromRuntime maps a session runtime error onto the HTTP error envelope.
// Errors that carry no runtime code become internal errors.
func FromRuntime(err error) *APIError {
	if err == nil {
		return nil
	}
	var re *RuntimeError
	if !stderrors.As(err, &re) {
		return Internal("")
	}
	switch re.Code {
	case CodeSessionNotFound:
		return NotFound("session_not_found", re.Message)
	case CodeInvalidTransition:
		return Conflict("invalid_transition", re.Message, nil)
	case CodePersistenceFailure:
		return Unavailable("persistence_failure", "failed to save "+re.Message+", retry the command")
	case CodeTimerMisuse:
		return Conflict("timer_misuse", re.Message, nil)
	case CodeInvalidCommand:
		return BadRequest("invalid_command", re.Message)
	default:
		return Internal("")
	}
}
