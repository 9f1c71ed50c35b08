// Package sequence mints human-readable codes such as AIPSLIB000042 from
// per-namespace counters kept in the shared store.
package sequence

import (
	"fmt"
	"strings"
)

// Namespace is a named counter series and the zero-padding width of its codes.
type Namespace struct {
	Prefix string
	Width  int
}

var (
	MemberCodes = Namespace{Prefix: "AIPSMEM", Width: 4}
	BookCodes   = Namespace{Prefix: "AIPSLIB", Width: 6}
)

func (n Namespace) String() string { return n.Prefix }

// Format renders seq as a code. Values wider than Width are not truncated.
func (n Namespace) Format(seq int64) string {
	return fmt.Sprintf("%s%0*d", n.Prefix, n.Width, seq)
}

// Pad turns a bare number typed by an operator ("42") into the canonical code
// ("AIPSLIB000042"). ok is false when digits is not purely numeric.
func (n Namespace) Pad(digits string) (code string, ok bool) {
	if !IsDigits(digits) {
		return "", false
	}
	if pad := n.Width - len(digits); pad > 0 {
		digits = strings.Repeat("0", pad) + digits
	}
	return n.Prefix + digits, true
}

// Tail returns the numeric tail of token with leading zeros removed, used to
// match codes regardless of padding. "000042" and "42" both yield "42".
func Tail(token string) string {
	return strings.TrimLeft(token, "0")
}

// IsDigits reports whether s is non-empty and made of ASCII digits only.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (n Namespace) validate() error {
	if strings.TrimSpace(n.Prefix) == "" || n.Width <= 0 {
		return fmt.Errorf("%w: %q width %d", ErrInvalidNamespace, n.Prefix, n.Width)
	}
	return nil
}
