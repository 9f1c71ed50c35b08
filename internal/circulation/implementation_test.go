package circulation_test

import (
	"context"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"librarian/internal/activity"
	"librarian/internal/catalog"
	"librarian/internal/circulation"
	"librarian/internal/membership"
	"librarian/internal/sequence"
	"librarian/internal/storage/storagetest"
)

type fixture struct {
	db      *sqlx.DB
	ledger  circulation.Service
	books   catalog.Service
	members membership.Service
	journal *activity.Journal
}

func newFixture(t *testing.T, db *sqlx.DB) *fixture {
	t.Helper()
	allocator := sequence.NewAllocator(db, nil)
	journal := activity.NewJournal(db, nil)
	books := catalog.NewService(db, allocator, journal, nil)
	members := membership.NewService(db, allocator, journal, nil)
	return &fixture{
		db:      db,
		ledger:  circulation.NewService(db, books, members, journal, nil),
		books:   books,
		members: members,
		journal: journal,
	}
}

func intPtr(v int) *int { return &v }

func (f *fixture) addBook(t *testing.T, total, available int) *catalog.Book {
	t.Helper()
	b, err := f.books.AddBook(context.Background(), catalog.NewBook{Title: "Godan", TotalCopies: total, AvailableCopies: intPtr(available)})
	require.NoError(t, err)
	return b
}

func (f *fixture) addMember(t *testing.T, name string) *membership.Member {
	t.Helper()
	m, err := f.members.RegisterMember(context.Background(), membership.Registration{Name: name, MemberType: "student", Gender: "other"})
	require.NoError(t, err)
	return m
}

func (f *fixture) book(t *testing.T, code string) *catalog.Book {
	t.Helper()
	b, err := f.books.ResolveBook(context.Background(), code)
	require.NoError(t, err)
	return b
}

func TestIssueFromZeroAlwaysRefused(t *testing.T) {
	f := newFixture(t, storagetest.NewSQLite(t))
	assertIssueFromZeroRefused(t, f, 16)
}

func TestIssueFromZeroAlwaysRefused_Postgres(t *testing.T) {
	f := newFixture(t, storagetest.NewPostgres(t))
	assertIssueFromZeroRefused(t, f, 64)
}

func assertIssueFromZeroRefused(t *testing.T, f *fixture, n int) {
	t.Helper()
	b := f.addBook(t, 5, 0)

	errs := issueConcurrently(f, b.Code, n)
	for _, err := range errs {
		assert.ErrorIs(t, err, circulation.ErrNoCopiesAvailable)
	}
	assert.Equal(t, 0, f.book(t, b.Code).AvailableCopies)
}

func TestConcurrentIssueNeverOverIssues(t *testing.T) {
	f := newFixture(t, storagetest.NewSQLite(t))
	assertNoOverIssue(t, f, 3, 4)
	assertNoOverIssue(t, f, 3, 32)
}

func TestConcurrentIssueNeverOverIssues_Postgres(t *testing.T) {
	f := newFixture(t, storagetest.NewPostgres(t))
	assertNoOverIssue(t, f, 3, 4)
	assertNoOverIssue(t, f, 10, 100)
}

func assertNoOverIssue(t *testing.T, f *fixture, copies, callers int) {
	t.Helper()
	b := f.addBook(t, copies, copies)

	var issued, refused int
	for _, err := range issueConcurrently(f, b.Code, callers) {
		switch {
		case err == nil:
			issued++
		case assert.ErrorIs(t, err, circulation.ErrNoCopiesAvailable):
			refused++
		}
	}

	assert.Equal(t, copies, issued)
	assert.Equal(t, callers-copies, refused)
	assert.Equal(t, 0, f.book(t, b.Code).AvailableCopies)
}

func issueConcurrently(f *fixture, ref string, n int) []error {
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ledger.Issue(context.Background(), ref, "")
		}(i)
	}
	wg.Wait()
	return errs
}

func TestConcurrentReturnNeverExceedsTotal(t *testing.T) {
	f := newFixture(t, storagetest.NewSQLite(t))
	assertReturnCapped(t, f, 3, 40)
}

func TestConcurrentReturnNeverExceedsTotal_Postgres(t *testing.T) {
	f := newFixture(t, storagetest.NewPostgres(t))
	assertReturnCapped(t, f, 10, 50)
}

func assertReturnCapped(t *testing.T, f *fixture, copies, callers int) {
	t.Helper()
	b := f.addBook(t, copies, 0)

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ledger.Return(context.Background(), b.Code, "")
		}(i)
	}
	wg.Wait()

	var returned, refused int
	for _, err := range errs {
		switch {
		case err == nil:
			returned++
		case assert.ErrorIs(t, err, circulation.ErrAllCopiesReturned):
			refused++
		}
	}
	assert.Equal(t, copies, returned)
	assert.Equal(t, callers-copies, refused)
	assert.Equal(t, copies, f.book(t, b.Code).AvailableCopies)
}

func TestReturnAtFullIsRefused(t *testing.T) {
	f := newFixture(t, storagetest.NewSQLite(t))
	ctx := context.Background()
	b := f.addBook(t, 2, 2)

	_, err := f.ledger.Return(ctx, b.Code, "")
	assert.ErrorIs(t, err, circulation.ErrAllCopiesReturned)

	after := f.book(t, b.Code)
	assert.Equal(t, 2, after.AvailableCopies)
	assert.Equal(t, b.Version, after.Version)
}

func TestReturnWithoutTotalIsUncapped(t *testing.T) {
	f := newFixture(t, storagetest.NewSQLite(t))
	ctx := context.Background()
	b := f.addBook(t, 0, 0)

	for i := 1; i <= 3; i++ {
		receipt, err := f.ledger.Return(ctx, b.Code, "")
		require.NoError(t, err)
		assert.Equal(t, i, receipt.Available)
	}
}

func TestIssueReturnRoundTrip(t *testing.T) {
	f := newFixture(t, storagetest.NewSQLite(t))
	ctx := context.Background()
	b := f.addBook(t, 4, 3)
	asha := f.addMember(t, "Asha Rao")

	receipt, err := f.ledger.Issue(ctx, "1", asha.Code)
	require.NoError(t, err)
	assert.Equal(t, 2, receipt.Available)
	assert.Equal(t, asha.Code, receipt.MemberCode)

	issued := f.book(t, b.Code)
	require.Len(t, issued.Borrowers, 1)
	assert.Equal(t, asha.ID, issued.Borrowers[0].MemberID)
	assert.Equal(t, asha.Code, issued.Borrowers[0].MemberCode)

	receipt, err = f.ledger.Return(ctx, "aipslib000001", "1")
	require.NoError(t, err)
	assert.Equal(t, 3, receipt.Available)
	assert.Equal(t, asha.Code, receipt.MemberCode)

	returned := f.book(t, b.Code)
	assert.Equal(t, 3, returned.AvailableCopies)
	assert.Empty(t, returned.Borrowers)
}

func TestReturnRemovesNamedBorrowerElseOldest(t *testing.T) {
	f := newFixture(t, storagetest.NewSQLite(t))
	ctx := context.Background()
	b := f.addBook(t, 3, 3)
	asha := f.addMember(t, "Asha Rao")
	ravi := f.addMember(t, "Ravi Kumar")
	meera := f.addMember(t, "Meera Nair")

	for _, m := range []*membership.Member{asha, ravi, meera} {
		_, err := f.ledger.Issue(ctx, b.Code, m.Code)
		require.NoError(t, err)
	}

	receipt, err := f.ledger.Return(ctx, b.Code, ravi.Code)
	require.NoError(t, err)
	assert.Equal(t, ravi.Code, receipt.MemberCode)
	assert.Equal(t, []string{asha.Code, meera.Code}, borrowerCodes(f.book(t, b.Code)))

	receipt, err = f.ledger.Return(ctx, b.Code, "")
	require.NoError(t, err)
	assert.Equal(t, asha.Code, receipt.MemberCode)
	assert.Equal(t, []string{meera.Code}, borrowerCodes(f.book(t, b.Code)))

	// Ravi holds nothing any more, so the oldest entry goes.
	receipt, err = f.ledger.Return(ctx, b.Code, ravi.Code)
	require.NoError(t, err)
	assert.Equal(t, meera.Code, receipt.MemberCode)
	assert.Empty(t, f.book(t, b.Code).Borrowers)
}

func borrowerCodes(b *catalog.Book) []string {
	codes := make([]string, 0, len(b.Borrowers))
	for _, br := range b.Borrowers {
		codes = append(codes, br.MemberCode)
	}
	return codes
}

func TestIssueSkipsUnknownAndInactiveBorrowers(t *testing.T) {
	f := newFixture(t, storagetest.NewSQLite(t))
	ctx := context.Background()
	b := f.addBook(t, 3, 3)
	gone := f.addMember(t, "Former Member")

	_, err := f.db.ExecContext(ctx, f.db.Rebind(`UPDATE members SET active = ? WHERE id = ?`), false, gone.ID)
	require.NoError(t, err)

	receipt, err := f.ledger.Issue(ctx, b.Code, "AIPSMEM9999")
	require.NoError(t, err)
	assert.Empty(t, receipt.MemberCode)

	receipt, err = f.ledger.Issue(ctx, b.Code, gone.Code)
	require.NoError(t, err)
	assert.Empty(t, receipt.MemberCode)

	after := f.book(t, b.Code)
	assert.Equal(t, 1, after.AvailableCopies)
	assert.Empty(t, after.Borrowers)
}

func TestUnknownBook(t *testing.T) {
	f := newFixture(t, storagetest.NewSQLite(t))
	ctx := context.Background()

	_, err := f.ledger.Issue(ctx, "AIPSLIB000404", "")
	assert.ErrorIs(t, err, catalog.ErrBookNotFound)

	_, err = f.ledger.Return(ctx, "404", "")
	assert.ErrorIs(t, err, catalog.ErrBookNotFound)
}

func TestLedgerJournalsMoves(t *testing.T) {
	f := newFixture(t, storagetest.NewSQLite(t))
	ctx := context.Background()
	b := f.addBook(t, 1, 1)

	_, err := f.ledger.Issue(ctx, b.Code, "")
	require.NoError(t, err)
	_, err = f.ledger.Issue(ctx, b.Code, "")
	require.ErrorIs(t, err, circulation.ErrNoCopiesAvailable)
	_, err = f.ledger.Return(ctx, b.Code, "")
	require.NoError(t, err)

	entries, err := f.journal.ForAggregate(ctx, b.ID, 10)
	require.NoError(t, err)

	kinds := make([]string, 0, len(entries))
	for _, e := range entries {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []string{"CopyReturned", "CopyIssued", "BookAdded"}, kinds)
}

func TestCountStaysInRange(t *testing.T) {
	f := newFixture(t, storagetest.NewSQLite(t))
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		total := rapid.IntRange(1, 5).Draw(rt, "total")
		available := rapid.IntRange(0, total).Draw(rt, "available")
		b, err := f.books.AddBook(ctx, catalog.NewBook{Title: "Prop", TotalCopies: total, AvailableCopies: &available})
		if err != nil {
			rt.Fatalf("add book: %v", err)
		}

		ops := rapid.SliceOfN(rapid.Bool(), 1, 20).Draw(rt, "issue")
		for _, issue := range ops {
			var err error
			if issue {
				_, err = f.ledger.Issue(ctx, b.Code, "")
				switch {
				case available > 0 && err == nil:
					available--
				case available == 0 && err != nil:
				default:
					rt.Fatalf("issue with %d available: %v", available, err)
				}
			} else {
				_, err = f.ledger.Return(ctx, b.Code, "")
				switch {
				case available < total && err == nil:
					available++
				case available == total && err != nil:
				default:
					rt.Fatalf("return with %d/%d available: %v", available, total, err)
				}
			}
		}

		stored, err := f.books.GetBook(ctx, b.ID)
		if err != nil {
			rt.Fatalf("get book: %v", err)
		}
		if stored.AvailableCopies != available {
			rt.Fatalf("available = %d, want %d", stored.AvailableCopies, available)
		}
	})
}
