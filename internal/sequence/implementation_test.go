package sequence_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarian/internal/sequence"
	"librarian/internal/storage/storagetest"
)

func TestAllocateFreshNamespaceStartsAtOne(t *testing.T) {
	alloc := sequence.NewAllocator(storagetest.NewSQLite(t), nil)
	ctx := context.Background()

	first, err := alloc.Allocate(ctx, sequence.MemberCodes)
	require.NoError(t, err)
	second, err := alloc.Allocate(ctx, sequence.MemberCodes)
	require.NoError(t, err)

	assert.Equal(t, "AIPSMEM0001", first)
	assert.Equal(t, "AIPSMEM0002", second)
}

func TestNamespacesAreIndependent(t *testing.T) {
	alloc := sequence.NewAllocator(storagetest.NewSQLite(t), nil)
	ctx := context.Background()

	_, err := alloc.Allocate(ctx, sequence.MemberCodes)
	require.NoError(t, err)
	_, err = alloc.Allocate(ctx, sequence.MemberCodes)
	require.NoError(t, err)

	book, err := alloc.Allocate(ctx, sequence.BookCodes)
	require.NoError(t, err)
	assert.Equal(t, "AIPSLIB000001", book)

	current, err := alloc.Current(ctx, sequence.MemberCodes)
	require.NoError(t, err)
	assert.Equal(t, int64(2), current)
}

func TestCurrentOfUnusedNamespaceIsZero(t *testing.T) {
	alloc := sequence.NewAllocator(storagetest.NewSQLite(t), nil)

	current, err := alloc.Current(context.Background(), sequence.Namespace{Prefix: "NEW", Width: 3})
	require.NoError(t, err)
	assert.Zero(t, current)
}

func TestAllocateRejectsInvalidNamespace(t *testing.T) {
	alloc := sequence.NewAllocator(storagetest.NewSQLite(t), nil)

	_, err := alloc.Allocate(context.Background(), sequence.Namespace{Prefix: " ", Width: 4})
	assert.ErrorIs(t, err, sequence.ErrInvalidNamespace)
}

func TestConcurrentAllocationIsContiguous_SQLite(t *testing.T) {
	assertContiguous(t, storagetest.NewSQLite(t), 64)
}

func TestConcurrentAllocationIsContiguous_Postgres(t *testing.T) {
	assertContiguous(t, storagetest.NewPostgres(t), 200)
}

func assertContiguous(t *testing.T, db *sqlx.DB, n int) {
	t.Helper()

	alloc := sequence.NewAllocator(db, nil)
	codes := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i], errs[i] = alloc.Allocate(context.Background(), sequence.BookCodes)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	want := make([]string, n)
	for i := range want {
		want[i] = fmt.Sprintf("AIPSLIB%06d", i+1)
	}
	sort.Strings(codes)
	assert.Equal(t, want, codes)
}
