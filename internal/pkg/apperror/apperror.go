package apperror

import "net/http"

// AppError is a custom error type that includes an HTTP status code and an optional internal error code.
type AppError struct {
	Code    int    // HTTP Status Code (e.g., 400, 404)
	Message string // User-facing error message
	Err     error  // The underlying error, if any (not exposed to user)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with a status code and message.
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new AppError wrapping an existing error.
func Wrap(err error, code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Validation creates a 400 error for malformed or inconsistent input.
func Validation(message string) *AppError {
	return New(http.StatusBadRequest, message)
}

// NotFound creates a 404 error for an absent entity.
func NotFound(message string) *AppError {
	return New(http.StatusNotFound, message)
}

// Forbidden creates a 403 error for a caller lacking rights over the target.
func Forbidden(message string) *AppError {
	return New(http.StatusForbidden, message)
}

// Conflict creates a 409 error for a lost concurrent-mutation race.
// Callers may retry with fresh data.
func Conflict(message string) *AppError {
	return New(http.StatusConflict, message)
}

// Gateway creates a 502 error for a failed or ambiguous payment gateway call.
func Gateway(message string) *AppError {
	return New(http.StatusBadGateway, message)
}
