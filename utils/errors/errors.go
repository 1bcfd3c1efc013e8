package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// APIError represents a custom error type for API responses
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

// Error returns the error message
func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code, message string, status int, details ...string) *APIError {
	err := &APIError{
		Code:    code,
		Message: message,
		Status:  status,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

var (
	ErrInvalidInput    = NewAPIError("INVALID_INPUT", "Invalid request data", http.StatusBadRequest)
	ErrUnauthorized    = NewAPIError("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrNotFound        = NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrInternal        = NewAPIError("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrUnavailable     = NewAPIError("BACKEND_UNAVAILABLE", "Storage backend unavailable", http.StatusServiceUnavailable)
	ErrTooManyRequests = NewAPIError("RATE_LIMITED", "Too many requests", http.StatusTooManyRequests)
)

func Wrap(err error, code, message string, status int) *APIError {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr
	}
	return NewAPIError(code, message, status, err.Error())
}

// Validation builds a 422 error naming the offending field.
func Validation(field, reason string) *APIError {
	return &APIError{
		Code:    "VALIDATION_ERROR",
		Message: "Validation failed",
		Status:  http.StatusUnprocessableEntity,
		Field:   field,
		Details: reason,
	}
}

// InvalidParam builds a 400 error for a malformed query or path parameter.
func InvalidParam(name, reason string) *APIError {
	return &APIError{
		Code:    ErrInvalidInput.Code,
		Message: ErrInvalidInput.Message,
		Status:  http.StatusBadRequest,
		Field:   name,
		Details: reason,
	}
}

// Backend wraps a storage failure so it surfaces as 503 instead of a 404.
func Backend(op string, err error) *APIError {
	if apiErr, ok := err.(*APIError); ok {
		return apiErr
	}
	return NewAPIError(ErrUnavailable.Code, ErrUnavailable.Message, ErrUnavailable.Status, fmt.Sprintf("%s: %v", op, err))
}

// From finds the APIError in err's chain. Anything else becomes an internal error.
func From(err error) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}
	return Wrap(err, "UNKNOWN_ERROR", "Unexpected error", ErrInternal.Status)
}

// IsValidation reports whether err carries a validation failure.
func IsValidation(err error) bool {
	var apiErr *APIError
	return stderrors.As(err, &apiErr) && apiErr.Code == "VALIDATION_ERROR"
}
