package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials   = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid username or password")
	ErrUnauthorized         = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrNotFound             = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrUserNotFound         = New("USER_NOT_FOUND", http.StatusNotFound, "user not found")
	ErrValidation           = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrDuplicateMatricula   = New("DUPLICATE_MATRICULA", http.StatusConflict, "a user with this matricula already exists")
	ErrPortNotOpen          = New("PORT_NOT_OPEN", http.StatusPreconditionFailed, "serial port is not open")
	ErrEnrollmentInProgress = New("ENROLLMENT_IN_PROGRESS", http.StatusConflict, "an enrollment is already in progress")
	ErrEnrollmentTimeout    = New("ENROLLMENT_TIMEOUT", http.StatusGatewayTimeout, "the device did not respond in time")
	ErrDeviceError          = New("DEVICE_ERROR", http.StatusBadGateway, "the device reported an error")
	ErrDeleteTimeout        = New("DELETE_TIMEOUT", http.StatusGatewayTimeout, "the device did not acknowledge the deletion in time")
	ErrDeleteInProgress     = New("DELETE_IN_PROGRESS", http.StatusConflict, "a deletion for this id is already in progress")
	ErrInternal             = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
