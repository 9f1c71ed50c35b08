package membership

import (
	"strings"

	"librarian/internal/validation"
)

var phoneNoise = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

// normalize trims the registration and folds enums and email to lower case.
func (r Registration) normalize() Registration {
	return Registration{
		Name:       strings.TrimSpace(r.Name),
		Phone:      phoneNoise.Replace(strings.TrimSpace(r.Phone)),
		Email:      strings.ToLower(strings.TrimSpace(r.Email)),
		MemberType: strings.ToLower(strings.TrimSpace(r.MemberType)),
		Gender:     strings.ToLower(strings.TrimSpace(r.Gender)),
	}
}

// Validate normalizes r and checks it. It returns the normalized value or a
// *validation.Error naming the first bad field.
func (r Registration) Validate() (Registration, error) {
	n := r.normalize()
	return n, validation.Check(n)
}
