package circulation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"librarian/internal/catalog"
	"librarian/internal/storage"
)

func TestOutcomeFor(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		refused string
		want    string
	}{
		{"missing book", fmt.Errorf("resolve: %w", catalog.ErrBookNotFound), outcomeNoCopies, outcomeBookNotFound},
		{"store down on resolve", fmt.Errorf("resolve: %w", storage.ErrUnavailable), outcomeNoCopies, outcomeError},
		{"store down on return", storage.ErrUnavailable, outcomeAllReturned, outcomeError},
		{"no copies", ErrNoCopiesAvailable, outcomeNoCopies, outcomeNoCopies},
		{"full shelf", ErrAllCopiesReturned, outcomeAllReturned, outcomeAllReturned},
		{"anything else", errors.New("boom"), outcomeNoCopies, outcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outcomeFor(tt.err, tt.refused))
		})
	}
}
