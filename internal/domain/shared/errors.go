package shared

import "errors"

// CodedError is implemented by every error that carries a stable machine-readable code
type CodedError interface {
	error
	ErrorCode() string
}

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// ErrorCode returns the machine-readable code
func (e *DomainError) ErrorCode() string {
	return e.Code
}

// Unwrap returns the underlying cause
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError by code so wrapped copies of a sentinel still compare equal
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError creates a domain error that keeps the original cause
func WrapDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	CodeNotFound              = "NOT_FOUND"
	CodeInvalidInput          = "INVALID_INPUT"
	CodeInvalidState          = "INVALID_STATE"
	CodeInsufficientStock     = "INSUFFICIENT_STOCK"
	CodeConcurrencyConflict   = "CONCURRENCY_CONFLICT"
	CodeLockTimeout           = "LOCK_TIMEOUT"
	CodeStorage               = "STORAGE_ERROR"
	CodeIdempotencyInProgress = "IDEMPOTENCY_IN_PROGRESS"
	CodeUnauthorized          = "UNAUTHORIZED"
)

// Common domain errors
var (
	ErrNotFound              = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput          = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrInvalidState          = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrInsufficientStock     = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrConcurrencyConflict   = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrLockTimeout           = NewDomainError(CodeLockTimeout, "Timed out waiting for lock")
	ErrStorage               = NewDomainError(CodeStorage, "Storage operation failed")
	ErrIdempotencyInProgress = NewDomainError(CodeIdempotencyInProgress, "A request with the same idempotency key is in progress")
	ErrUnauthorized          = NewDomainError(CodeUnauthorized, "Not authorized to perform this action")
)

// IsRetryable reports whether the error is transient and the caller may retry with backoff
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockTimeout) || errors.Is(err, ErrConcurrencyConflict)
}
