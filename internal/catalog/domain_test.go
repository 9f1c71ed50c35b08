package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func intPtr(v int) *int { return &v }

func TestClampAvailableStaysInRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		total := rapid.IntRange(0, 1000).Draw(t, "total")
		available := rapid.IntRange(-1000, 2000).Draw(t, "available")

		got := ClampAvailable(available, total, true)
		if got < 0 || got > total {
			t.Fatalf("ClampAvailable(%d, %d) = %d, outside [0, %d]", available, total, got, total)
		}
		if available >= 0 && available <= total && got != available {
			t.Fatalf("in-range value %d changed to %d", available, got)
		}
	})
}

func TestClampAvailableWithoutRecordedTotal(t *testing.T) {
	assert.Equal(t, 4, ClampAvailable(4, 0, false))
	assert.Equal(t, 0, ClampAvailable(4, 0, true))
	assert.Equal(t, 0, ClampAvailable(-2, 0, false))
}

func TestApply(t *testing.T) {
	tests := []struct {
		name          string
		total, avail  int
		patch         BookPatch
		wantTotal     int
		wantAvailable int
	}{
		{"raise total keeps available", 3, 2, BookPatch{TotalCopies: intPtr(5)}, 5, 2},
		{"lower total clamps available", 5, 4, BookPatch{TotalCopies: intPtr(2)}, 2, 2},
		{"lower total above available", 5, 1, BookPatch{TotalCopies: intPtr(3)}, 3, 1},
		{"total to zero", 5, 4, BookPatch{TotalCopies: intPtr(0)}, 0, 0},
		{"explicit available above total", 5, 1, BookPatch{AvailableCopies: intPtr(9)}, 5, 5},
		{"both fields", 5, 1, BookPatch{TotalCopies: intPtr(8), AvailableCopies: intPtr(6)}, 8, 6},
		{"title only", 5, 1, BookPatch{Title: new(string)}, 5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Book{TotalCopies: tt.total, AvailableCopies: tt.avail}
			b.Apply(tt.patch)
			assert.Equal(t, tt.wantTotal, b.TotalCopies)
			assert.Equal(t, tt.wantAvailable, b.AvailableCopies)
		})
	}
}

func TestView(t *testing.T) {
	b := &Book{Code: "AIPSLIB000001", Title: "Gitanjali", ShelfLocation: "R2-S4", TotalCopies: 2, AvailableCopies: 0}

	v := b.View()
	assert.Equal(t, "R2-S4", v.Shelf)
	assert.False(t, v.CanIssue)

	b.AvailableCopies = 1
	assert.True(t, b.View().CanIssue)
}
