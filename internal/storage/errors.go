package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrDuplicateKey is returned when a write violates a unique constraint.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrUnavailable marks transient store failures. Callers may retry the whole operation.
	ErrUnavailable = errors.New("store unavailable")

	// ErrUnsupportedDriver is returned by Open for drivers librarian has no schema for.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

const (
	pgUniqueViolation       = "23505"
	pgConnectionClass       = "08"
	pgOperatorInterventions = "57P"
)

// Classify tags err with ErrDuplicateKey or ErrUnavailable when the driver
// error says so. Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDuplicateKey) || errors.Is(err, ErrUnavailable) {
		return err
	}

	switch {
	case isDuplicate(err):
		return fmt.Errorf("%w: %w", ErrDuplicateKey, err)
	case isTransient(err):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return err
}

// IsDuplicate reports whether err is (or wraps) a unique constraint violation.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateKey) || isDuplicate(err)
}

func isDuplicate(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgUniqueViolation
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
	}

	return false
}

func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return strings.HasPrefix(code, pgConnectionClass) || strings.HasPrefix(code, pgOperatorInterventions)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, pgConnectionClass) || strings.HasPrefix(pgErr.Code, pgOperatorInterventions)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
