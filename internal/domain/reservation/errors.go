package reservation

import (
	"errors"
	"fmt"
	"time"

	"github.com/erp/reservation/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Validation error codes
const (
	CodeInvalidQuantity = "INVALID_QUANTITY"
	CodeInvalidTTL      = "INVALID_TTL"
	CodeInvalidKey      = "INVALID_KEY"
	CodeInvalidOwner    = "INVALID_OWNER"
)

// InsufficientStockError is returned by Reserve when the requested quantity exceeds availability.
// No state was changed.
type InsufficientStockError struct {
	Key       StockKey
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %s, available %s",
		e.Key, e.Requested.String(), e.Available.String())
}

// ErrorCode returns INSUFFICIENT_STOCK
func (e *InsufficientStockError) ErrorCode() string { return shared.CodeInsufficientStock }

// Is matches shared.ErrInsufficientStock
func (e *InsufficientStockError) Is(target error) bool { return target == shared.ErrInsufficientStock }

// ReservationNotFoundError is returned when no reservation has the given id
type ReservationNotFoundError struct {
	ID uuid.UUID
}

func (e *ReservationNotFoundError) Error() string {
	return fmt.Sprintf("reservation %s not found", e.ID)
}

// ErrorCode returns NOT_FOUND
func (e *ReservationNotFoundError) ErrorCode() string { return shared.CodeNotFound }

// Is matches shared.ErrNotFound
func (e *ReservationNotFoundError) Is(target error) bool { return target == shared.ErrNotFound }

// InvalidStateError is returned when a transition is attempted from a state that does not allow it,
// typically because a racing operation already resolved the reservation.
type InvalidStateError struct {
	ID        uuid.UUID
	Current   Status
	Attempted Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("reservation %s cannot move from %s to %s", e.ID, e.Current, e.Attempted)
}

// ErrorCode returns INVALID_STATE
func (e *InvalidStateError) ErrorCode() string { return shared.CodeInvalidState }

// Is matches shared.ErrInvalidState
func (e *InvalidStateError) Is(target error) bool { return target == shared.ErrInvalidState }

// LockTimeoutError is returned when the key guard or a database row lock could not be obtained in time.
// It is transient; callers may retry with backoff.
type LockTimeoutError struct {
	Key    string
	Waited time.Duration
	Err    error
}

func (e *LockTimeoutError) Error() string {
	if e.Waited > 0 {
		return fmt.Sprintf("timed out after %s waiting for lock on %s", e.Waited, e.Key)
	}
	return fmt.Sprintf("timed out waiting for lock on %s", e.Key)
}

// ErrorCode returns LOCK_TIMEOUT
func (e *LockTimeoutError) ErrorCode() string { return shared.CodeLockTimeout }

// Is matches shared.ErrLockTimeout
func (e *LockTimeoutError) Is(target error) bool { return target == shared.ErrLockTimeout }

// Unwrap returns the driver error, if any
func (e *LockTimeoutError) Unwrap() error { return e.Err }

// StorageError wraps a failure of the underlying store. The operation made no partial change.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

// ErrorCode returns STORAGE_ERROR
func (e *StorageError) ErrorCode() string { return shared.CodeStorage }

// Is matches shared.ErrStorage
func (e *StorageError) Is(target error) bool { return target == shared.ErrStorage }

// Unwrap returns the underlying cause
func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err unless it already carries a reservation error classification
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var coded shared.CodedError
	if errors.As(err, &coded) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
