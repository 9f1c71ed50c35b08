package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"librarian/internal/activity"
	"librarian/internal/lookup"
	"librarian/internal/sequence"
	"librarian/internal/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

var (
	memberTable   = lookup.Table{Name: "members", NS: sequence.MemberCodes}
	memberColumns = []any{"id", "code", "name", "phone", "email", "member_type", "gender", "active", "created_at"}
)

// service implements the Service interface.
type service struct {
	db        *sqlx.DB
	allocator sequence.Allocator
	journal   *activity.Journal
	logger    *slog.Logger
}

// NewService creates a new membership service instance.
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

// RegisterMember validates reg, mints a code and stores the member.
// Nothing is written when validation fails.
func (s *service) RegisterMember(ctx context.Context, reg Registration) (*Member, error) {
	reg, err := reg.Validate()
	if err != nil {
		return nil, err
	}

	code, err := s.allocator.Allocate(ctx, sequence.MemberCodes)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate member code: %w", err)
	}

	member := &Member{
		ID:         uuid.New(),
		Code:       code,
		Name:       reg.Name,
		Phone:      reg.Phone,
		Email:      reg.Email,
		MemberType: MemberType(reg.MemberType),
		Gender:     Gender(reg.Gender),
		Active:     true,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.insertMember(ctx, member); err != nil {
		if storage.IsDuplicate(err) {
			return nil, fmt.Errorf("%w: %s: %w", ErrDuplicateCode, code, err)
		}
		return nil, fmt.Errorf("failed to insert member: %w", err)
	}

	s.journal.Record(ctx, member.ID, activity.AggregateMember, "MemberRegistered", MemberRegisteredEvent{
		ID:         member.ID,
		Code:       member.Code,
		Name:       member.Name,
		MemberType: member.MemberType,
	})
	s.logger.Info("member registered", "code", member.Code, "member_type", member.MemberType)

	return member, nil
}

func (s *service) insertMember(ctx context.Context, m *Member) error {
	query := s.db.Rebind(`
		INSERT INTO members (id, code, name, phone, email, member_type, gender, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query, m.ID, m.Code, m.Name, m.Phone, m.Email, string(m.MemberType), string(m.Gender), m.Active, m.CreatedAt)
	return storage.Classify(err)
}

// GetMember retrieves a member by its ID.
func (s *service) GetMember(ctx context.Context, id uuid.UUID) (*Member, error) {
	query := s.db.Rebind(`
		SELECT id, code, name, phone, email, member_type, gender, active, created_at
		FROM members
		WHERE id = ?
	`)
	member := &Member{}
	if err := s.db.GetContext(ctx, member, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
		}
		return nil, fmt.Errorf("failed to get member: %w", storage.Classify(err))
	}
	return member, nil
}

// ResolveMember accepts an id, a code in any case, or a bare member number.
func (s *service) ResolveMember(ctx context.Context, ref string) (*Member, error) {
	id, _, err := lookup.Resolve(ctx, s.db, memberTable, ref)
	if errors.Is(err, lookup.ErrNoMatch) {
		return nil, fmt.Errorf("%w: %q", ErrMemberNotFound, ref)
	}
	if err != nil {
		return nil, err
	}
	return s.GetMember(ctx, id)
}

// ListMembers returns members ordered by code.
func (s *service) ListMembers(ctx context.Context, filter ListFilter) ([]*Member, error) {
	ds := storage.Dialect(s.db).
		From("members").
		Select(memberColumns...).
		Order(goqu.C("code").Asc())

	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		ds = ds.Where(goqu.Or(
			goqu.C("name").ILike(like),
			goqu.C("code").ILike(like),
			goqu.C("email").ILike(like),
			goqu.C("phone").ILike(like),
		))
	}
	if filter.MemberType != "" {
		ds = ds.Where(goqu.C("member_type").Eq(string(filter.MemberType)))
	}

	ds = ds.Limit(uint(clampLimit(filter.Limit)))
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build member query: %w", err)
	}

	members := []*Member{}
	if err := s.db.SelectContext(ctx, &members, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", storage.Classify(err))
	}
	return members, nil
}

// CountMembers returns the number of registered members.
func (s *service) CountMembers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM members`); err != nil {
		return 0, fmt.Errorf("failed to count members: %w", storage.Classify(err))
	}
	return n, nil
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
