package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schemaVersion = 2

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS counters (
		namespace TEXT PRIMARY KEY,
		sequence  BIGINT NOT NULL DEFAULT 0 CHECK (sequence >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		id               UUID PRIMARY KEY,
		code             TEXT NOT NULL UNIQUE,
		title            TEXT NOT NULL,
		author           TEXT NOT NULL DEFAULT '',
		category         TEXT NOT NULL DEFAULT '',
		published_year   INTEGER NOT NULL DEFAULT 0,
		total_copies     INTEGER NOT NULL DEFAULT 0 CHECK (total_copies >= 0),
		available_copies INTEGER NOT NULL DEFAULT 0 CHECK (available_copies >= 0),
		shelf_location   TEXT NOT NULL DEFAULT '',
		version          INTEGER NOT NULL DEFAULT 1,
		created_at       TIMESTAMPTZ NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`DROP INDEX IF EXISTS books_code_lower_idx`,
	`CREATE UNIQUE INDEX IF NOT EXISTS books_code_lower_key ON books (LOWER(code))`,
	`CREATE TABLE IF NOT EXISTS members (
		id          UUID PRIMARY KEY,
		code        TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL,
		phone       TEXT NOT NULL DEFAULT '',
		email       TEXT NOT NULL DEFAULT '',
		member_type TEXT NOT NULL,
		gender      TEXT NOT NULL,
		active      BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`DROP INDEX IF EXISTS members_code_lower_idx`,
	`CREATE UNIQUE INDEX IF NOT EXISTS members_code_lower_key ON members (LOWER(code))`,
	`CREATE TABLE IF NOT EXISTS book_borrowers (
		id          BIGSERIAL PRIMARY KEY,
		book_id     UUID NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		member_id   UUID NOT NULL,
		borrowed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS book_borrowers_book_idx ON book_borrowers (book_id, id)`,
	`CREATE TABLE IF NOT EXISTS activity (
		id             BIGSERIAL PRIMARY KEY,
		aggregate_id   UUID NOT NULL,
		aggregate_type TEXT NOT NULL,
		kind           TEXT NOT NULL,
		payload        TEXT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS activity_aggregate_idx ON activity (aggregate_id, id)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token_hash TEXT PRIMARY KEY,
		username   TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS counters (
		namespace TEXT PRIMARY KEY,
		sequence  INTEGER NOT NULL DEFAULT 0 CHECK (sequence >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		id               TEXT PRIMARY KEY,
		code             TEXT NOT NULL UNIQUE,
		title            TEXT NOT NULL,
		author           TEXT NOT NULL DEFAULT '',
		category         TEXT NOT NULL DEFAULT '',
		published_year   INTEGER NOT NULL DEFAULT 0,
		total_copies     INTEGER NOT NULL DEFAULT 0 CHECK (total_copies >= 0),
		available_copies INTEGER NOT NULL DEFAULT 0 CHECK (available_copies >= 0),
		shelf_location   TEXT NOT NULL DEFAULT '',
		version          INTEGER NOT NULL DEFAULT 1,
		created_at       DATETIME NOT NULL,
		updated_at       DATETIME NOT NULL
	)`,
	`DROP INDEX IF EXISTS books_code_lower_idx`,
	`CREATE UNIQUE INDEX IF NOT EXISTS books_code_lower_key ON books (LOWER(code))`,
	`CREATE TABLE IF NOT EXISTS members (
		id          TEXT PRIMARY KEY,
		code        TEXT NOT NULL UNIQUE,
		name        TEXT NOT NULL,
		phone       TEXT NOT NULL DEFAULT '',
		email       TEXT NOT NULL DEFAULT '',
		member_type TEXT NOT NULL,
		gender      TEXT NOT NULL,
		active      BOOLEAN NOT NULL DEFAULT 1,
		created_at  DATETIME NOT NULL
	)`,
	`DROP INDEX IF EXISTS members_code_lower_idx`,
	`CREATE UNIQUE INDEX IF NOT EXISTS members_code_lower_key ON members (LOWER(code))`,
	`CREATE TABLE IF NOT EXISTS book_borrowers (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		book_id     TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
		member_id   TEXT NOT NULL,
		borrowed_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS book_borrowers_book_idx ON book_borrowers (book_id, id)`,
	`CREATE TABLE IF NOT EXISTS activity (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		aggregate_id   TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		kind           TEXT NOT NULL,
		payload        TEXT NOT NULL,
		created_at     DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS activity_aggregate_idx ON activity (aggregate_id, id)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token_hash TEXT PRIMARY KEY,
		username   TEXT NOT NULL,
		expires_at DATETIME NOT NULL,
		created_at DATETIME NOT NULL
	)`,
}

// Migrate brings the schema up to date. It is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_meta (key TEXT PRIMARY KEY, value INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_meta: %w", Classify(err))
	}

	var current int
	err := db.QueryRowxContext(ctx, `SELECT value FROM schema_meta WHERE key = 'schema_version'`).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", Classify(err))
	}
	if current >= schemaVersion {
		return nil
	}

	stmts := postgresSchema
	if db.DriverName() == DriverSQLite {
		stmts = sqliteSchema
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", Classify(err))
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", Classify(err))
		}
	}

	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO schema_meta (key, value) VALUES ('schema_version', ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`), schemaVersion)
	if err != nil {
		return fmt.Errorf("record schema version: %w", Classify(err))
	}

	return tx.Commit()
}
