// Package errors defines the error envelope returned by the HTTP API.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode is a stable, machine readable error identifier.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "VALIDATION_ERROR"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeConflict          ErrorCode = "CONFLICT"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	CodeInvalidToken      ErrorCode = "INVALID_TOKEN"
	CodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeLimitExceeded     ErrorCode = "PLAN_LIMIT_EXCEEDED"
	CodeInvalidState      ErrorCode = "INVALID_STATE"
	CodeUnavailable       ErrorCode = "SERVICE_UNAVAILABLE"
	CodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// ServiceError is an error with an HTTP status and optional details.
type ServiceError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"`
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// WithDetails returns the error with an extra detail entry.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(code ErrorCode, status int, message string, err error) *ServiceError {
	return &ServiceError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

func Validation(message string) *ServiceError {
	return newError(CodeValidation, http.StatusBadRequest, message, nil)
}

func NotFound(resource, id string) *ServiceError {
	return newError(CodeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", resource), nil).WithDetails("id", id)
}

func Conflict(message string) *ServiceError {
	return newError(CodeConflict, http.StatusConflict, message, nil)
}

func Forbidden(message string) *ServiceError {
	return newError(CodeForbidden, http.StatusForbidden, message, nil)
}

func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "Authentication required"
	}
	return newError(CodeUnauthorized, http.StatusUnauthorized, message, nil)
}

func InvalidToken(err error) *ServiceError {
	return newError(CodeInvalidToken, http.StatusUnauthorized, "Invalid or expired token", err)
}

func RateLimitExceeded(limit int, window string) *ServiceError {
	return newError(CodeRateLimitExceeded, http.StatusTooManyRequests, "Rate limit exceeded", nil).
		WithDetails("limit", limit).
		WithDetails("window", window)
}

// LimitExceeded reports a plan quota violation.
func LimitExceeded(message string) *ServiceError {
	return newError(CodeLimitExceeded, http.StatusPaymentRequired, message, nil)
}

// InvalidState reports a disallowed state transition.
func InvalidState(message string) *ServiceError {
	return newError(CodeInvalidState, http.StatusConflict, message, nil)
}

func Unavailable(message string, err error) *ServiceError {
	return newError(CodeUnavailable, http.StatusServiceUnavailable, message, err)
}

func Internal(message string, err error) *ServiceError {
	return newError(CodeInternal, http.StatusInternalServerError, message, err)
}

// GetServiceError extracts a ServiceError from an error chain.
func GetServiceError(err error) *ServiceError {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// HasCode reports whether err carries a ServiceError with the given code.
func HasCode(err error, code ErrorCode) bool {
	se := GetServiceError(err)
	return se != nil && se.Code == code
}
