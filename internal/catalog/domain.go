package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Book is a catalog title and its copy inventory.
type Book struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	Code            string     `json:"code" db:"code"`
	Title           string     `json:"title" db:"title"`
	Author          string     `json:"author" db:"author"`
	Category        string     `json:"category" db:"category"`
	Year            int        `json:"year" db:"published_year"`
	TotalCopies     int        `json:"total_copies" db:"total_copies"`
	AvailableCopies int        `json:"available_copies" db:"available_copies"`
	ShelfLocation   string     `json:"shelf_location" db:"shelf_location"`
	Version         int        `json:"version" db:"version"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	Borrowers       []Borrower `json:"borrowers,omitempty" db:"-"`
}

// Borrower is one entry of a book's borrower list, oldest first. The list is
// advisory; AvailableCopies is the source of truth for how many copies are out.
type Borrower struct {
	MemberID   uuid.UUID `json:"member_id" db:"member_id"`
	MemberCode string    `json:"member_code" db:"code"`
	Name       string    `json:"name" db:"name"`
	BorrowedAt time.Time `json:"borrowed_at" db:"borrowed_at"`
}

// NewBook is the input for AddBook. An empty Code is allocated from the book
// namespace; a nil AvailableCopies defaults to TotalCopies.
type NewBook struct {
	Code            string `json:"code"`
	Title           string `json:"title" validate:"required"`
	Author          string `json:"author"`
	Category        string `json:"category"`
	Year            int    `json:"year" validate:"min=0"`
	TotalCopies     int    `json:"total_copies" validate:"min=0"`
	AvailableCopies *int   `json:"available_copies" validate:"omitempty,min=0"`
	ShelfLocation   string `json:"shelf_location"`
}

// BookPatch is a partial update; nil fields are left alone. The code is immutable.
type BookPatch struct {
	Title           *string `json:"title" validate:"omitempty,min=1"`
	Author          *string `json:"author"`
	Category        *string `json:"category"`
	Year            *int    `json:"year" validate:"omitempty,min=0"`
	TotalCopies     *int    `json:"total_copies" validate:"omitempty,min=0"`
	AvailableCopies *int    `json:"available_copies" validate:"omitempty,min=0"`
	ShelfLocation   *string `json:"shelf_location"`
}

// View is the normalized lookup projection of a book.
type View struct {
	Code      string `json:"code"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Category  string `json:"category"`
	Year      int    `json:"year"`
	Shelf     string `json:"shelf"`
	Total     int    `json:"total"`
	Available int    `json:"available"`
	CanIssue  bool   `json:"can_issue"`
}

// ListFilter narrows ListBooks. Zero values mean "no filter".
type ListFilter struct {
	Query         string
	Category      string
	AvailableOnly bool
	Limit         int
	Offset        int
}

// Stats summarizes the catalog.
type Stats struct {
	Titles          int `json:"titles" db:"titles"`
	TotalCopies     int `json:"total_copies" db:"total_copies"`
	AvailableCopies int `json:"available_copies" db:"available_copies"`
	CopiesOut       int `json:"copies_out" db:"copies_out"`
}

// BookAddedEvent is journaled when a book is added.
type BookAddedEvent struct {
	ID              uuid.UUID `json:"id"`
	Code            string    `json:"code"`
	Title           string    `json:"title"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
}

// BookUpdatedEvent is journaled after a successful update.
type BookUpdatedEvent struct {
	ID              uuid.UUID `json:"id"`
	Code            string    `json:"code"`
	Version         int       `json:"version"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
}

// BookRemovedEvent is journaled when a book is deleted.
type BookRemovedEvent struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
}

// View projects b for lookups.
func (b *Book) View() View {
	return View{
		Code:      b.Code,
		Title:     b.Title,
		Author:    b.Author,
		Category:  b.Category,
		Year:      b.Year,
		Shelf:     b.ShelfLocation,
		Total:     b.TotalCopies,
		Available: b.AvailableCopies,
		CanIssue:  b.AvailableCopies > 0,
	}
}

// Apply copies the non-nil fields of p onto b and re-establishes the copy invariant.
func (b *Book) Apply(p BookPatch) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Author != nil {
		b.Author = *p.Author
	}
	if p.Category != nil {
		b.Category = *p.Category
	}
	if p.Year != nil {
		b.Year = *p.Year
	}
	if p.ShelfLocation != nil {
		b.ShelfLocation = *p.ShelfLocation
	}
	if p.TotalCopies != nil {
		b.TotalCopies = *p.TotalCopies
	}
	if p.AvailableCopies != nil {
		b.AvailableCopies = *p.AvailableCopies
	}
	b.AvailableCopies = ClampAvailable(b.AvailableCopies, b.TotalCopies, p.TotalCopies != nil)
}

// ClampAvailable keeps available within [0, total]. A book with no recorded
// total (0) keeps its count unless the total was just set.
func ClampAvailable(available, total int, totalSet bool) int {
	if available < 0 {
		available = 0
	}
	if (total > 0 || totalSet) && available > total {
		available = total
	}
	return available
}
