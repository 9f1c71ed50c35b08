package sequence

import (
	"context"
	"errors"
)

// ErrInvalidNamespace is returned for an empty prefix or a non-positive width.
var ErrInvalidNamespace = errors.New("invalid namespace")

// Allocator hands out codes. Every call for a namespace returns a value
// strictly greater than all values handed out before, with no gaps and no
// duplicates, however many callers race.
type Allocator interface {
	// Allocate increments the namespace counter and returns the formatted code.
	Allocate(ctx context.Context, ns Namespace) (string, error)
	// Current returns the last issued sequence value, 0 for an unused namespace.
	Current(ctx context.Context, ns Namespace) (int64, error)
}
