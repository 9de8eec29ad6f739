package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code       ErrorCode     `json:"code"`
	Message    string        `json:"message"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
	Err        error         `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error code to an HTTP status, consumed by the
// error-handling middleware.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrValidation:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrTooSoon:
		return http.StatusUnprocessableEntity
	case ErrSlotTaken, ErrInvalidTransition:
		return http.StatusConflict
	case ErrTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrValidation
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrTooSoon
	ErrSlotTaken
	ErrInvalidTransition
	ErrTooManyRequests
	ErrDeliveryFailure
)

// Error constructors
func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func Validation(message string, err error) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// TooSoon reports a violation of the 24-hour lead-time policy.
func TooSoon(message string) *AppError {
	return &AppError{
		Code:    ErrTooSoon,
		Message: message,
	}
}

// SlotTaken reports a write-time scheduling conflict.
func SlotTaken(message string) *AppError {
	return &AppError{
		Code:    ErrSlotTaken,
		Message: message,
	}
}

// InvalidTransition reports an illegal reservation status change.
func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("cannot transition reservation from %s to %s", from, to),
	}
}

// TooManyRequests reports a rate-limit denial with a retry-after hint.
func TooManyRequests(retryAfter time.Duration) *AppError {
	return &AppError{
		Code:       ErrTooManyRequests,
		Message:    "too many requests",
		RetryAfter: retryAfter,
	}
}

// DeliveryFailure reports a non-fatal downstream notification failure. It
// never rolls back a committed state change.
func DeliveryFailure(err error) *AppError {
	return &AppError{
		Code:    ErrDeliveryFailure,
		Message: "notification delivery failed",
		Err:     err,
	}
}

// IsCode reports whether err is an AppError carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
