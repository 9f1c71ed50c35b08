package circulation

import (
	"time"

	"github.com/google/uuid"
)

// Receipt describes the state of a title right after a copy moved.
type Receipt struct {
	BookID     uuid.UUID `json:"book_id"`
	BookCode   string    `json:"book_code"`
	Title      string    `json:"title"`
	Total      int       `json:"total"`
	Available  int       `json:"available"`
	MemberCode string    `json:"member_code,omitempty"`
	At         time.Time `json:"at"`
}

// CopyIssuedEvent is journaled after a successful issue.
type CopyIssuedEvent struct {
	BookID    uuid.UUID  `json:"book_id"`
	BookCode  string     `json:"book_code"`
	MemberID  *uuid.UUID `json:"member_id,omitempty"`
	Available int        `json:"available"`
}

// CopyReturnedEvent is journaled after a successful return.
type CopyReturnedEvent struct {
	BookID    uuid.UUID  `json:"book_id"`
	BookCode  string     `json:"book_code"`
	MemberID  *uuid.UUID `json:"member_id,omitempty"`
	Available int        `json:"available"`
}
