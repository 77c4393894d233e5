package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the error type returned across the engine. Alert marks errors
// the rendering layer must show to the user as a blocking alert.
type AppError struct {
	Code    string
	Message string
	Status  int
	Alert   bool
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    "BAD_REQUEST",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func TooManyRequests(message string) *AppError {
	return &AppError{
		Code:    "TOO_MANY_REQUESTS",
		Message: message,
		Status:  http.StatusTooManyRequests,
	}
}

// SendFailed is raised after an optimistic message was rolled back.
func SendFailed(err error) *AppError {
	return &AppError{
		Code:    "SEND_FAILED",
		Message: "message could not be sent",
		Status:  http.StatusBadGateway,
		Alert:   true,
		Err:     err,
	}
}

func UploadFailed(err error) *AppError {
	return &AppError{
		Code:    "UPLOAD_FAILED",
		Message: "attachment upload failed",
		Status:  http.StatusBadGateway,
		Alert:   true,
		Err:     err,
	}
}

func PageFetchFailed(err error) *AppError {
	return &AppError{
		Code:    "PAGE_FETCH_FAILED",
		Message: "could not load messages",
		Status:  http.StatusBadGateway,
		Err:     err,
	}
}

// ActionFailed covers user actions (pin, delete, edit) whose failure is alerted.
func ActionFailed(action string, err error) *AppError {
	return &AppError{
		Code:    "ACTION_FAILED",
		Message: fmt.Sprintf("%s failed", action),
		Status:  http.StatusBadGateway,
		Alert:   true,
		Err:     err,
	}
}

func NoActiveRoom() *AppError {
	return &AppError{
		Code:    "NO_ACTIVE_ROOM",
		Message: "no room is open",
		Status:  http.StatusConflict,
	}
}

func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func IsAlert(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Alert
	}
	return false
}
