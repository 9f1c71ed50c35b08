// Package storagetest provides migrated stores for tests.
package storagetest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"librarian/internal/storage"
)

// NewSQLite returns a migrated SQLite store living in t.TempDir().
func NewSQLite(t testing.TB) *sqlx.DB {
	t.Helper()

	ctx := context.Background()
	dsn, err := storage.SQLiteDSN(filepath.Join(t.TempDir(), "librarian.db"))
	require.NoError(t, err)

	db, err := storage.Open(ctx, storage.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, storage.Migrate(ctx, db))
	return db
}

// NewPostgres connects to the database described by the PG* environment
// variables and migrates a fresh schema that is dropped on cleanup.
// The test is skipped when no server is reachable.
func NewPostgres(t testing.TB) *sqlx.DB {
	t.Helper()

	ctx := context.Background()
	base := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		env("PGHOST", "localhost"), env("PGPORT", "5432"), env("PGUSER", "user"),
		env("PGPASSWORD", "password"), env("PGDATABASE", "testdb"))

	admin, err := storage.Open(ctx, storage.DriverPostgres, base)
	if err != nil {
		t.Skipf("skipping postgres tests: could not connect to postgres: %v", err)
	}
	defer admin.Close()

	schema := "t_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = admin.ExecContext(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)

	db, err := storage.Open(ctx, storage.DriverPostgres, base+" search_path="+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
		if cleanup, err := storage.Open(context.Background(), storage.DriverPostgres, base); err == nil {
			cleanup.Exec("DROP SCHEMA " + schema + " CASCADE")
			cleanup.Close()
		}
	})

	require.NoError(t, storage.Migrate(ctx, db))
	return db
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
