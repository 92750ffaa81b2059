package dto

import (
	"errors"
	"net/http"
	"time"

	"github.com/erp/reservation/internal/domain/reservation"
	"github.com/erp/reservation/internal/domain/shared"
	"github.com/erp/reservation/internal/infrastructure/scheduler"
)

// Transport-level error codes. Domain codes are passed through unchanged.
const (
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeInvalidJSON     = "INVALID_JSON"
	ErrCodeForbidden       = "FORBIDDEN"
	ErrCodeTokenExpired    = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid    = "INVALID_TOKEN"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeUnavailable     = "SERVICE_UNAVAILABLE"
)

// LockTimeoutRetryAfter is the Retry-After hint sent with LOCK_TIMEOUT responses
const LockTimeoutRetryAfter = time.Second

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:               http.StatusBadRequest,
	ErrCodeValidation:               http.StatusBadRequest,
	ErrCodeInvalidJSON:              http.StatusBadRequest,
	shared.CodeInvalidInput:         http.StatusBadRequest,
	reservation.CodeInvalidQuantity: http.StatusBadRequest,
	reservation.CodeInvalidTTL:      http.StatusBadRequest,
	reservation.CodeInvalidKey:      http.StatusBadRequest,
	reservation.CodeInvalidOwner:    http.StatusBadRequest,

	// Auth errors
	shared.CodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired:     http.StatusUnauthorized,
	ErrCodeTokenInvalid:     http.StatusUnauthorized,
	ErrCodeForbidden:        http.StatusForbidden,

	shared.CodeNotFound: http.StatusNotFound,

	// Conflicts -> 409, safe to retry later
	shared.CodeConcurrencyConflict:   http.StatusConflict,
	shared.CodeIdempotencyInProgress: http.StatusConflict,
	scheduler.CodeSweepInProgress:    http.StatusConflict,

	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	// Business rule errors -> 422 Unprocessable Entity
	shared.CodeInsufficientStock: http.StatusUnprocessableEntity,
	shared.CodeInvalidState:      http.StatusUnprocessableEntity,

	shared.CodeStorage:     http.StatusInternalServerError,
	shared.CodeLockTimeout: http.StatusServiceUnavailable,
	ErrCodeUnavailable:     http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// APIError is the HTTP rendering of an application error
type APIError struct {
	Status     int
	Code       string
	Message    string
	RetryAfter time.Duration
}

// FromError classifies err by its code. Storage and unclassified errors get a generic message
// so driver details never reach the caller.
func FromError(err error) APIError {
	var coded shared.CodedError
	if !errors.As(err, &coded) {
		return APIError{
			Status:  http.StatusInternalServerError,
			Code:    ErrCodeInternal,
			Message: "An unexpected error occurred",
		}
	}

	code := coded.ErrorCode()
	apiErr := APIError{
		Status:  GetHTTPStatus(code),
		Code:    code,
		Message: coded.Error(),
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) && domainErr.Code == code {
		apiErr.Message = domainErr.Message
	}

	switch code {
	case shared.CodeStorage:
		apiErr.Message = "Storage operation failed"
	case shared.CodeLockTimeout:
		apiErr.RetryAfter = LockTimeoutRetryAfter
	}
	return apiErr
}
