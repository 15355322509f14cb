package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies an error in API responses
type ErrorCode string

const (
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput      ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired   ErrorCode = "MISSING_REQUIRED"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeUserNotFound      ErrorCode = "USER_NOT_FOUND"

	// Email change taxonomy, see FromEmailChangeError
	ErrCodeInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrCodeTokenExpired      ErrorCode = "TOKEN_EXPIRED"
	ErrCodeTooManyRequests   ErrorCode = "TOO_MANY_REQUESTS"
	ErrCodeTooManyAttempts   ErrorCode = "TOO_MANY_ATTEMPTS"
	ErrCodeEmailAlreadyInUse ErrorCode = "EMAIL_ALREADY_IN_USE"
	ErrCodeSameEmail         ErrorCode = "SAME_EMAIL"
)

// Codes missing here answer 500
var httpStatusByCode = map[ErrorCode]int{
	ErrCodeInvalidInput:      http.StatusBadRequest,
	ErrCodeMissingRequired:   http.StatusBadRequest,
	ErrCodeInvalidRequest:    http.StatusBadRequest,
	ErrCodeSameEmail:         http.StatusBadRequest,
	ErrCodeUnauthorized:      http.StatusUnauthorized,
	ErrCodeUserNotFound:      http.StatusNotFound,
	ErrCodeEmailAlreadyInUse: http.StatusConflict,
	ErrCodeTokenExpired:      http.StatusGone,
	ErrCodeRateLimitExceeded: http.StatusTooManyRequests,
	ErrCodeTooManyRequests:   http.StatusTooManyRequests,
	ErrCodeTooManyAttempts:   http.StatusTooManyRequests,
}

// Error is an API facing error. Message is safe to show to the caller; Err is not.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail sets a detail and returns e for chaining
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// HTTPStatusCode returns the response status for e.Code
func (e *Error) HTTPStatusCode() int {
	if status, ok := httpStatusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap returns nil when err is nil
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// IsCode reports whether err wraps an *Error with the given code
func IsCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// GetCode returns ErrCodeInternal for anything that is not an *Error
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

func GetDetails(err error) map[string]interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

func InvalidInput(field, reason string) *Error {
	return New(ErrCodeInvalidInput, fmt.Sprintf("invalid %s: %s", field, reason))
}

func Unauthorized(message string) *Error {
	return New(ErrCodeUnauthorized, message)
}

func Internal(message string) *Error {
	return New(ErrCodeInternal, message)
}

func InternalWrap(err error, message string) *Error {
	return Wrap(err, ErrCodeInternal, message)
}

// RateLimitExceeded carries retryAfter, in seconds, under the "retry_after" detail
func RateLimitExceeded(retryAfter string) *Error {
	err := New(ErrCodeRateLimitExceeded, "rate limit exceeded")
	if retryAfter != "" {
		err.WithDetail("retry_after", retryAfter)
	}
	return err
}
