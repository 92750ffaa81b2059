package persistence

import (
	"errors"
	"time"

	"github.com/erp/reservation/internal/domain/reservation"
	"github.com/erp/reservation/internal/domain/shared"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// Driver error codes that mean "gave up waiting for a row lock"
const (
	pgLockNotAvailable   = "55P03"
	pgUniqueViolation    = "23505"
	pgSerialization      = "40001"
	pgDeadlockDetected   = "40P01"
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
	mysqlDuplicateEntry  = 1062
)

// translateError maps driver errors onto domain errors. lockKey names the row or key being
// locked and ends up in LockTimeoutError. Errors that already carry a domain code pass through.
func translateError(op, lockKey string, waited time.Duration, err error) error {
	if err == nil {
		return nil
	}
	var coded shared.CodedError
	if errors.As(err, &coded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable:
			return &reservation.LockTimeoutError{Key: lockKey, Waited: waited, Err: err}
		case pgUniqueViolation, pgSerialization, pgDeadlockDetected:
			return shared.WrapDomainError(shared.CodeConcurrencyConflict, "Concurrent modification detected", err)
		}
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlLockWaitTimeout:
			return &reservation.LockTimeoutError{Key: lockKey, Waited: waited, Err: err}
		case mysqlDeadlock, mysqlDuplicateEntry:
			return shared.WrapDomainError(shared.CodeConcurrencyConflict, "Concurrent modification detected", err)
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return &reservation.LockTimeoutError{Key: lockKey, Waited: waited, Err: err}
		case sqlite3.ErrConstraint:
			if liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
				return shared.WrapDomainError(shared.CodeConcurrencyConflict, "Concurrent modification detected", err)
			}
		}
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.WrapDomainError(shared.CodeConcurrencyConflict, "Concurrent modification detected", err)
	}

	return reservation.NewStorageError(op, err)
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
