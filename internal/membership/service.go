package membership

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrMemberNotFound is returned when a member reference does not resolve.
	ErrMemberNotFound = errors.New("member not found")

	// ErrDuplicateCode is returned when the allocated code already exists.
	// The caller should retry registration, which allocates a fresh code.
	ErrDuplicateCode = errors.New("member code already exists")
)

// Service defines the interface for the membership service.
type Service interface {
	RegisterMember(ctx context.Context, reg Registration) (*Member, error)
	GetMember(ctx context.Context, id uuid.UUID) (*Member, error)
	ResolveMember(ctx context.Context, ref string) (*Member, error)
	ListMembers(ctx context.Context, filter ListFilter) ([]*Member, error)
	CountMembers(ctx context.Context) (int, error)
}
