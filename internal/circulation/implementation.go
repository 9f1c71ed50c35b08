package circulation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"librarian/internal/activity"
	"librarian/internal/catalog"
	"librarian/internal/membership"
	"librarian/internal/storage"
)

// The availability check and the decrement are one statement; the row is
// simply not matched once the last copy is gone.
const issueQuery = `
	UPDATE books
	SET available_copies = available_copies - 1, version = version + 1, updated_at = ?
	WHERE id = ? AND available_copies > 0
	RETURNING available_copies, total_copies
`

// Books without a recorded total are never capped.
const returnQuery = `
	UPDATE books
	SET available_copies = available_copies + 1, version = version + 1, updated_at = ?
	WHERE id = ? AND (total_copies = 0 OR available_copies < total_copies)
	RETURNING available_copies, total_copies
`

const (
	outcomeIssued       = "issued"
	outcomeReturned     = "returned"
	outcomeNoCopies     = "no_copies_available"
	outcomeAllReturned  = "all_copies_returned"
	outcomeBookNotFound = "not_found"
	outcomeError        = "error"
)

// service implements the Service interface.
type service struct {
	db       *sqlx.DB
	books    catalog.Service
	members  membership.Service
	journal  *activity.Journal
	logger   *slog.Logger
	tracer   trace.Tracer
	outcomes metric.Int64Counter
}

// NewService creates a new circulation service instance.
func NewService(db *sqlx.DB, books catalog.Service, members membership.Service, journal *activity.Journal, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	outcomes, _ := otel.Meter("librarian/circulation").Int64Counter(
		"librarian.circulation.outcomes",
		metric.WithDescription("Issue and return attempts by outcome"),
	)

	return &service{
		db:       db,
		books:    books,
		members:  members,
		journal:  journal,
		logger:   logger,
		tracer:   otel.Tracer("librarian/circulation"),
		outcomes: outcomes,
	}
}

// Issue takes one copy off the shelf and, when memberRef names an active
// member, records them as a borrower.
func (s *service) Issue(ctx context.Context, bookRef, memberRef string) (*Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.issue",
		trace.WithAttributes(attribute.String("book.ref", bookRef)),
	)
	defer span.End()

	book, err := s.books.ResolveBook(ctx, bookRef)
	if err != nil {
		s.record(ctx, span, "issue", outcomeFor(err, outcomeNoCopies), err)
		return nil, err
	}
	span.SetAttributes(attribute.String("book.code", book.Code))

	member := s.borrower(ctx, memberRef)

	now := time.Now().UTC()
	available, total, err := s.step(ctx, issueQuery, now, book.ID)
	if errors.Is(err, errNotMatched) {
		err = s.unmatched(ctx, book, ErrNoCopiesAvailable)
		s.record(ctx, span, "issue", outcomeFor(err, outcomeNoCopies), err)
		return nil, err
	}
	if err != nil {
		s.record(ctx, span, "issue", "error", err)
		return nil, fmt.Errorf("failed to issue %s: %w", book.Code, err)
	}

	receipt := &Receipt{
		BookID:    book.ID,
		BookCode:  book.Code,
		Title:     book.Title,
		Total:     total,
		Available: available,
		At:        now,
	}

	var memberID *uuid.UUID
	if member != nil {
		if err := s.appendBorrower(ctx, book.ID, member.ID, now); err != nil {
			s.logger.Warn("borrower not recorded",
				"book", book.Code,
				"member", member.Code,
				"error", err,
			)
		} else {
			receipt.MemberCode = member.Code
			memberID = &member.ID
		}
	}

	s.journal.Record(ctx, book.ID, activity.AggregateBook, "CopyIssued", CopyIssuedEvent{
		BookID:    book.ID,
		BookCode:  book.Code,
		MemberID:  memberID,
		Available: available,
	})
	s.record(ctx, span, "issue", outcomeIssued, nil)
	s.logger.Info("copy issued", "book", book.Code, "available", available, "member", receipt.MemberCode)

	return receipt, nil
}

// Return puts one copy back on the shelf and drops one borrower entry: the
// named member's oldest entry when there is one, otherwise the oldest entry.
func (s *service) Return(ctx context.Context, bookRef, memberRef string) (*Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.return",
		trace.WithAttributes(attribute.String("book.ref", bookRef)),
	)
	defer span.End()

	book, err := s.books.ResolveBook(ctx, bookRef)
	if err != nil {
		s.record(ctx, span, "return", outcomeFor(err, outcomeAllReturned), err)
		return nil, err
	}
	span.SetAttributes(attribute.String("book.code", book.Code))

	now := time.Now().UTC()
	available, total, err := s.step(ctx, returnQuery, now, book.ID)
	if errors.Is(err, errNotMatched) {
		err = s.unmatched(ctx, book, ErrAllCopiesReturned)
		s.record(ctx, span, "return", outcomeFor(err, outcomeAllReturned), err)
		return nil, err
	}
	if err != nil {
		s.record(ctx, span, "return", "error", err)
		return nil, fmt.Errorf("failed to return %s: %w", book.Code, err)
	}

	receipt := &Receipt{
		BookID:    book.ID,
		BookCode:  book.Code,
		Title:     book.Title,
		Total:     total,
		Available: available,
		At:        now,
	}

	var member *membership.Member
	if memberRef != "" {
		member, err = s.members.ResolveMember(ctx, memberRef)
		if err != nil {
			s.logger.Warn("returning member not resolved", "book", book.Code, "member_ref", memberRef, "error", err)
			member = nil
		}
	}

	removed, err := s.removeBorrower(ctx, book.ID, member)
	switch {
	case err != nil:
		s.logger.Warn("borrower not removed", "book", book.Code, "error", err)
	case removed != nil:
		receipt.MemberCode = removed.code
	}

	var memberID *uuid.UUID
	if removed != nil {
		memberID = &removed.memberID
	}
	s.journal.Record(ctx, book.ID, activity.AggregateBook, "CopyReturned", CopyReturnedEvent{
		BookID:    book.ID,
		BookCode:  book.Code,
		MemberID:  memberID,
		Available: available,
	})
	s.record(ctx, span, "return", outcomeReturned, nil)
	s.logger.Info("copy returned", "book", book.Code, "available", available, "member", receipt.MemberCode)

	return receipt, nil
}

var errNotMatched = errors.New("conditional update matched no row")

// step runs one of the conditional count updates and reports the new counts.
func (s *service) step(ctx context.Context, query string, now time.Time, id uuid.UUID) (available, total int, err error) {
	err = s.db.QueryRowxContext(ctx, s.db.Rebind(query), now, id).Scan(&available, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, errNotMatched
	}
	if err != nil {
		return 0, 0, storage.Classify(err)
	}
	return available, total, nil
}

// unmatched tells a refused update apart from a book deleted after it was resolved.
func (s *service) unmatched(ctx context.Context, book *catalog.Book, refused error) error {
	var exists bool
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(`SELECT EXISTS (SELECT 1 FROM books WHERE id = ?)`), book.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check book %s: %w", book.Code, storage.Classify(err))
	}
	if !exists {
		return fmt.Errorf("%w: %s", catalog.ErrBookNotFound, book.Code)
	}
	return fmt.Errorf("%w: %s", refused, book.Code)
}

// borrower resolves the member to record on issue. Unknown and inactive
// members do not block the issue; they are just not recorded.
func (s *service) borrower(ctx context.Context, memberRef string) *membership.Member {
	if memberRef == "" {
		return nil
	}
	member, err := s.members.ResolveMember(ctx, memberRef)
	if err != nil {
		s.logger.Warn("borrower not resolved", "member_ref", memberRef, "error", err)
		return nil
	}
	if !member.Active {
		s.logger.Warn("inactive member not recorded as borrower", "member", member.Code)
		return nil
	}
	return member
}

func (s *service) appendBorrower(ctx context.Context, bookID, memberID uuid.UUID, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO book_borrowers (book_id, member_id, borrowed_at) VALUES (?, ?, ?)
	`), bookID, memberID, at)
	return storage.Classify(err)
}

type removedBorrower struct {
	memberID uuid.UUID
	code     string
}

// removeBorrower deletes the member's oldest entry, or the book's oldest entry
// when the member has none or was not given. It returns nil when the list was empty.
func (s *service) removeBorrower(ctx context.Context, bookID uuid.UUID, member *membership.Member) (*removedBorrower, error) {
	if member != nil {
		memberID, err := s.deleteBorrower(ctx, `
			DELETE FROM book_borrowers
			WHERE id = (SELECT id FROM book_borrowers WHERE book_id = ? AND member_id = ? ORDER BY id LIMIT 1)
			RETURNING member_id
		`, bookID, member.ID)
		if err != nil {
			return nil, err
		}
		if memberID != uuid.Nil {
			return &removedBorrower{memberID: memberID, code: member.Code}, nil
		}
		s.logger.Warn("member not in borrower list, removing oldest entry", "member", member.Code)
	}

	memberID, err := s.deleteBorrower(ctx, `
		DELETE FROM book_borrowers
		WHERE id = (SELECT id FROM book_borrowers WHERE book_id = ? ORDER BY id LIMIT 1)
		RETURNING member_id
	`, bookID)
	if err != nil || memberID == uuid.Nil {
		return nil, err
	}

	removed := &removedBorrower{memberID: memberID}
	err = s.db.QueryRowxContext(ctx, s.db.Rebind(`SELECT code FROM members WHERE id = ?`), memberID).Scan(&removed.code)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Debug("borrower code not loaded", "member_id", memberID.String(), "error", err)
	}
	return removed, nil
}

func (s *service) deleteBorrower(ctx context.Context, query string, args ...any) (uuid.UUID, error) {
	var memberID uuid.UUID
	err := s.db.QueryRowxContext(ctx, s.db.Rebind(query), args...).Scan(&memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, storage.Classify(err)
	}
	return memberID, nil
}

func (s *service) record(ctx context.Context, span trace.Span, op, outcome string, err error) {
	span.SetAttributes(attribute.String("outcome", outcome))
	if err != nil && outcome != outcomeNoCopies && outcome != outcomeAllReturned {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	s.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

func outcomeFor(err error, refused string) string {
	if errors.Is(err, catalog.ErrBookNotFound) {
		return outcomeBookNotFound
	}
	if errors.Is(err, ErrNoCopiesAvailable) || errors.Is(err, ErrAllCopiesReturned) {
		return refused
	}
	return outcomeError
}
