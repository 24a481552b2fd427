package common

import (
	"errors"
	"net/http"
)

// Error codes shared across handlers.
const (
	CodeBadRequest    = "BAD_REQUEST"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeTooLarge      = "PAYLOAD_TOO_LARGE"
	CodeInternal      = "INTERNAL"
	CodeUnavailable   = "VALIDATION_UNAVAILABLE"
	unavailableNotice = "validation is temporarily unavailable"
)

// APIError is an error that knows how it is rendered to clients. Cause never leaves the
// process; only Code, Message and Details are written.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details any
	Cause   error
}

func (e *APIError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Cause != nil:
		return e.Code + ": " + e.Cause.Error()
	default:
		return e.Code + ": " + e.Message
	}
}

func (e *APIError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// BadRequest rejects a malformed body. details usually maps field paths to the failed rule.
func BadRequest(message string, details any) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: CodeBadRequest, Message: message, Details: details}
}

// Unauthorized rejects a bearer token that cannot be verified.
func Unauthorized(cause error) *APIError {
	return &APIError{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: "invalid token", Cause: cause}
}

// TooLarge rejects a body over the configured limit.
func TooLarge() *APIError {
	return &APIError{Status: http.StatusRequestEntityTooLarge, Code: CodeTooLarge, Message: "request entity too large"}
}

// Unavailable reports that a pricing store could not answer.
func Unavailable(code string, cause error) *APIError {
	if code == "" {
		code = CodeUnavailable
	}
	return &APIError{Status: http.StatusServiceUnavailable, Code: code, Message: unavailableNotice, Cause: cause}
}

// WriteError renders err. Anything that is not an *APIError becomes an opaque 500.
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		JSONError(w, http.StatusInternalServerError, CodeInternal, "internal server error", nil)
		return
	}
	status := apiErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	JSONError(w, status, apiErr.Code, apiErr.Message, apiErr.Details)
}
