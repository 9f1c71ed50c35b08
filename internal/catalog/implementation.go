package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"librarian/internal/activity"
	"librarian/internal/lookup"
	"librarian/internal/sequence"
	"librarian/internal/storage"
	"librarian/internal/validation"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

var (
	bookTable   = lookup.Table{Name: "books", NS: sequence.BookCodes}
	bookColumns = []any{
		"id", "code", "title", "author", "category", "published_year", "total_copies",
		"available_copies", "shelf_location", "version", "created_at", "updated_at",
	}
)

// service implements the Service interface.
type service struct {
	db        *sqlx.DB
	allocator sequence.Allocator
	journal   *activity.Journal
	logger    *slog.Logger
}

// NewService creates a new catalog service instance.
func NewService(db *sqlx.DB, allocator sequence.Allocator, journal *activity.Journal, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &service{
		db:        db,
		allocator: allocator,
		journal:   journal,
		logger:    logger,
	}
}

// AddBook stores a new title. Without a code one is allocated; without an
// available count every copy starts on the shelf.
func (s *service) AddBook(ctx context.Context, nb NewBook) (*Book, error) {
	nb.Code = strings.ToUpper(strings.TrimSpace(nb.Code))
	nb.Title = strings.TrimSpace(nb.Title)
	if err := validation.Check(nb); err != nil {
		return nil, err
	}

	code := nb.Code
	if code == "" {
		var err error
		if code, err = s.allocator.Allocate(ctx, sequence.BookCodes); err != nil {
			return nil, fmt.Errorf("failed to allocate book code: %w", err)
		}
	}

	available := nb.TotalCopies
	if nb.AvailableCopies != nil {
		available = *nb.AvailableCopies
	}

	now := time.Now().UTC()
	book := &Book{
		ID:              uuid.New(),
		Code:            code,
		Title:           nb.Title,
		Author:          strings.TrimSpace(nb.Author),
		Category:        strings.TrimSpace(nb.Category),
		Year:            nb.Year,
		TotalCopies:     nb.TotalCopies,
		AvailableCopies: ClampAvailable(available, nb.TotalCopies, true),
		ShelfLocation:   strings.TrimSpace(nb.ShelfLocation),
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.insertBook(ctx, book); err != nil {
		if storage.IsDuplicate(err) {
			return nil, fmt.Errorf("%w: %s: %w", ErrDuplicateCode, code, err)
		}
		return nil, fmt.Errorf("failed to insert book: %w", err)
	}

	s.journal.Record(ctx, book.ID, activity.AggregateBook, "BookAdded", BookAddedEvent{
		ID:              book.ID,
		Code:            book.Code,
		Title:           book.Title,
		TotalCopies:     book.TotalCopies,
		AvailableCopies: book.AvailableCopies,
	})
	s.logger.Info("book added", "code", book.Code, "total_copies", book.TotalCopies)

	return book, nil
}

func (s *service) insertBook(ctx context.Context, b *Book) error {
	query := s.db.Rebind(`
		INSERT INTO books (id, code, title, author, category, published_year, total_copies,
			available_copies, shelf_location, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query, b.ID, b.Code, b.Title, b.Author, b.Category, b.Year,
		b.TotalCopies, b.AvailableCopies, b.ShelfLocation, b.Version, b.CreatedAt, b.UpdatedAt)
	return storage.Classify(err)
}

// GetBook retrieves a book and its borrower list by ID.
func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	query := s.db.Rebind(`
		SELECT id, code, title, author, category, published_year, total_copies,
			available_copies, shelf_location, version, created_at, updated_at
		FROM books
		WHERE id = ?
	`)
	book := &Book{}
	if err := s.db.GetContext(ctx, book, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrBookNotFound, id)
		}
		return nil, fmt.Errorf("failed to get book: %w", storage.Classify(err))
	}

	borrowers, err := s.borrowers(ctx, id)
	if err != nil {
		return nil, err
	}
	book.Borrowers = borrowers

	return book, nil
}

// Members are never deleted today, but the list holds plain references, hence the outer join.
func (s *service) borrowers(ctx context.Context, bookID uuid.UUID) ([]Borrower, error) {
	query := s.db.Rebind(`
		SELECT bb.member_id, COALESCE(m.code, '') AS code, COALESCE(m.name, '') AS name, bb.borrowed_at
		FROM book_borrowers bb
		LEFT JOIN members m ON m.id = bb.member_id
		WHERE bb.book_id = ?
		ORDER BY bb.id
	`)
	borrowers := []Borrower{}
	if err := s.db.SelectContext(ctx, &borrowers, query, bookID); err != nil {
		return nil, fmt.Errorf("failed to load borrowers: %w", storage.Classify(err))
	}
	return borrowers, nil
}

// ResolveBook resolves ref (id, code, bare number, any case) to a book.
func (s *service) ResolveBook(ctx context.Context, ref string) (*Book, error) {
	id, strategy, err := lookup.Resolve(ctx, s.db, bookTable, ref)
	if errors.Is(err, lookup.ErrNoMatch) {
		return nil, fmt.Errorf("%w: %q", ErrBookNotFound, ref)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Debug("book resolved", "ref", ref, "strategy", strategy)
	return s.GetBook(ctx, id)
}

// Lookup returns the normalized projection of the book behind ref.
func (s *service) Lookup(ctx context.Context, ref string) (View, error) {
	book, err := s.ResolveBook(ctx, ref)
	if err != nil {
		return View{}, err
	}
	return book.View(), nil
}

// UpdateBook applies patch. The write is conditional on the version read, so
// a concurrent issue or return forces a re-read and a fresh clamp instead of
// being overwritten.
func (s *service) UpdateBook(ctx context.Context, ref string, patch BookPatch) (*Book, error) {
	patch = patch.normalize()
	if err := validation.Check(patch); err != nil {
		return nil, err
	}

	id, _, err := lookup.Resolve(ctx, s.db, bookTable, ref)
	if errors.Is(err, lookup.ErrNoMatch) {
		return nil, fmt.Errorf("%w: %q", ErrBookNotFound, ref)
	}
	if err != nil {
		return nil, err
	}

	var updated *Book
	err = retryOnStale(ctx, func(ctx context.Context) error {
		book, err := s.GetBook(ctx, id)
		if err != nil {
			return err
		}

		book.Apply(patch)
		book.UpdatedAt = time.Now().UTC()

		query := s.db.Rebind(`
			UPDATE books
			SET title = ?, author = ?, category = ?, published_year = ?, total_copies = ?,
				available_copies = ?, shelf_location = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?
		`)
		res, err := s.db.ExecContext(ctx, query, book.Title, book.Author, book.Category, book.Year,
			book.TotalCopies, book.AvailableCopies, book.ShelfLocation, book.UpdatedAt, book.ID, book.Version)
		if err != nil {
			return fmt.Errorf("failed to update book: %w", storage.Classify(err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to update book: %w", err)
		}
		if n == 0 {
			return errStale
		}

		book.Version++
		updated = book
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.journal.Record(ctx, updated.ID, activity.AggregateBook, "BookUpdated", BookUpdatedEvent{
		ID:              updated.ID,
		Code:            updated.Code,
		Version:         updated.Version,
		TotalCopies:     updated.TotalCopies,
		AvailableCopies: updated.AvailableCopies,
	})

	return updated, nil
}

func (p BookPatch) normalize() BookPatch {
	trim := func(s *string) *string {
		if s == nil {
			return nil
		}
		v := strings.TrimSpace(*s)
		return &v
	}
	p.Title = trim(p.Title)
	p.Author = trim(p.Author)
	p.Category = trim(p.Category)
	p.ShelfLocation = trim(p.ShelfLocation)
	return p
}

// DeleteBook removes the book behind ref together with its borrower list.
func (s *service) DeleteBook(ctx context.Context, ref string) error {
	book, err := s.ResolveBook(ctx, ref)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM books WHERE id = ?`), book.ID)
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", storage.Classify(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", ErrBookNotFound, ref)
	}

	s.journal.Record(ctx, book.ID, activity.AggregateBook, "BookRemoved", BookRemovedEvent{ID: book.ID, Code: book.Code})
	s.logger.Info("book removed", "code", book.Code)

	return nil
}

// ListBooks returns books ordered by code, without borrower lists.
func (s *service) ListBooks(ctx context.Context, filter ListFilter) ([]*Book, error) {
	ds := storage.Dialect(s.db).
		From("books").
		Select(bookColumns...).
		Order(goqu.C("code").Asc())

	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + q + "%"
		ds = ds.Where(goqu.Or(
			goqu.C("title").ILike(like),
			goqu.C("author").ILike(like),
			goqu.C("code").ILike(like),
		))
	}
	if filter.Category != "" {
		ds = ds.Where(goqu.C("category").ILike(filter.Category))
	}
	if filter.AvailableOnly {
		ds = ds.Where(goqu.C("available_copies").Gt(0))
	}

	ds = ds.Limit(uint(clampLimit(filter.Limit)))
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build book query: %w", err)
	}

	books := []*Book{}
	if err := s.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list books: %w", storage.Classify(err))
	}
	return books, nil
}

// Stats totals titles and copies across the catalog.
func (s *service) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) AS titles,
			COALESCE(SUM(total_copies), 0) AS total_copies,
			COALESCE(SUM(available_copies), 0) AS available_copies,
			COALESCE(SUM(CASE WHEN total_copies > available_copies THEN total_copies - available_copies ELSE 0 END), 0) AS copies_out
		FROM books
	`)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to compute stats: %w", storage.Classify(err))
	}
	return stats, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}
