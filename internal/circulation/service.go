package circulation

import (
	"context"
	"errors"
)

var (
	// ErrNoCopiesAvailable is returned by Issue when every copy is out.
	ErrNoCopiesAvailable = errors.New("no copies available")

	// ErrAllCopiesReturned is returned by Return when every copy is already on the shelf.
	ErrAllCopiesReturned = errors.New("all copies already returned")
)

// Service defines the interface for the circulation service.
//
// bookRef and memberRef accept anything the catalog and membership resolvers
// accept. memberRef may be empty.
type Service interface {
	Issue(ctx context.Context, bookRef, memberRef string) (*Receipt, error)
	Return(ctx context.Context, bookRef, memberRef string) (*Receipt, error)
}
