// Package storage opens the relational store shared by every librarian
// component and owns its schema.
//
// All cross-request consistency in librarian comes from single statements
// executed here: counter upserts, conditional copy updates and unique
// constraints. Nothing above this layer takes a lock.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // goqu dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // goqu dialect registration
	_ "github.com/jackc/pgx/v5/stdlib"                  // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // registers the "postgres" driver
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

const (
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
	DriverSQLite   = "sqlite3"
)

// Open connects to the store behind driver/dsn and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverPostgres, DriverPGX, DriverSQLite:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// One writer at a time; statements stay atomic and busy errors disappear.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", Classify(err))
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, Classify(err))
	}

	return db, nil
}

// SQLiteDSN builds a DSN for a database file at path, creating its directory.
func SQLiteDSN(path string) (string, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create db dir: %w", err)
		}
	}
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", path), nil
}

// Dialect returns the goqu dialect matching the driver behind db.
func Dialect(db *sqlx.DB) goqu.DialectWrapper {
	if db.DriverName() == DriverSQLite {
		return goqu.Dialect("sqlite3")
	}
	return goqu.Dialect("postgres")
}
