package lookup_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarian/internal/lookup"
	"librarian/internal/sequence"
	"librarian/internal/storage/storagetest"
)

var books = lookup.Table{Name: "books", NS: sequence.BookCodes}

func insertBook(t *testing.T, db *sqlx.DB, code string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	now := time.Now().UTC()
	_, err := db.Exec(db.Rebind(`INSERT INTO books (id, code, title, created_at, updated_at) VALUES (?, ?, 'T', ?, ?)`), id, code, now, now)
	require.NoError(t, err)
	return id
}

func TestResolveTokens(t *testing.T) {
	db := storagetest.NewSQLite(t)
	ctx := context.Background()
	id := insertBook(t, db, "AIPSLIB000042")
	insertBook(t, db, "AIPSLIB000043")

	tests := []struct {
		token    string
		strategy lookup.Strategy
	}{
		{id.String(), lookup.ByID},
		{"AIPSLIB000042", lookup.ByCode},
		{"42", lookup.ByPaddedNumber},
		{"000042", lookup.ByPaddedNumber},
		{"0000042", lookup.ByNumericTail},
		{"aipslib000042", lookup.ByCodeIgnoreCase},
		{"  42 ", lookup.ByPaddedNumber},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, strategy, err := lookup.Resolve(ctx, db, books, tt.token)
			require.NoError(t, err)
			assert.Equal(t, id, got)
			assert.Equal(t, tt.strategy, strategy)
		})
	}
}

func TestResolveUnpaddedLegacyCode(t *testing.T) {
	db := storagetest.NewSQLite(t)
	id := insertBook(t, db, "AIPSLIB7")

	got, strategy, err := lookup.Resolve(context.Background(), db, books, "0007")
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, lookup.ByNumericTail, strategy)
}

func TestNumericTailRequiresExactPrefix(t *testing.T) {
	assertNumericTailRequiresExactPrefix(t, storagetest.NewSQLite(t))
}

func TestNumericTailRequiresExactPrefix_Postgres(t *testing.T) {
	assertNumericTailRequiresExactPrefix(t, storagetest.NewPostgres(t))
}

func assertNumericTailRequiresExactPrefix(t *testing.T, db *sqlx.DB) {
	t.Helper()
	ctx := context.Background()
	insertBook(t, db, "aipslib7")

	_, _, err := lookup.Resolve(ctx, db, books, "0007")
	assert.ErrorIs(t, err, lookup.ErrNoMatch)

	id := insertBook(t, db, "AIPSLIB8")
	got, strategy, err := lookup.Resolve(ctx, db, books, "8")
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, lookup.ByNumericTail, strategy)
}

func TestResolveFirstStrategyWins(t *testing.T) {
	db := storagetest.NewSQLite(t)
	exact := insertBook(t, db, "42")
	insertBook(t, db, "AIPSLIB000042")

	got, strategy, err := lookup.Resolve(context.Background(), db, books, "42")
	require.NoError(t, err)
	assert.Equal(t, exact, got)
	assert.Equal(t, lookup.ByCode, strategy)
}

func TestResolveNoMatch(t *testing.T) {
	db := storagetest.NewSQLite(t)
	insertBook(t, db, "AIPSLIB000042")

	for _, token := range []string{"", "   ", "43", "AIPSLIB000043", uuid.NewString(), "nonsense"} {
		_, _, err := lookup.Resolve(context.Background(), db, books, token)
		assert.ErrorIs(t, err, lookup.ErrNoMatch, token)
	}
}
