package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrBookNotFound is returned when a book reference does not resolve.
	ErrBookNotFound = errors.New("book not found")

	// ErrDuplicateCode is returned when a supplied or allocated code is taken.
	ErrDuplicateCode = errors.New("book code already exists")

	// ErrVersionConflict is returned when an update kept losing to concurrent writers.
	ErrVersionConflict = errors.New("book was modified concurrently")
)

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, nb NewBook) (*Book, error)
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	// ResolveBook maps an operator-entered reference to a book, see lookup.Resolve.
	ResolveBook(ctx context.Context, ref string) (*Book, error)
	Lookup(ctx context.Context, ref string) (View, error)
	UpdateBook(ctx context.Context, ref string, patch BookPatch) (*Book, error)
	DeleteBook(ctx context.Context, ref string) error
	ListBooks(ctx context.Context, filter ListFilter) ([]*Book, error)
	Stats(ctx context.Context) (Stats, error)
}
