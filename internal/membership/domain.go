package membership

import (
	"time"

	"github.com/google/uuid"
)

// MemberType is the borrower category.
type MemberType string

const (
	Student   MemberType = "student"
	Teacher   MemberType = "teacher"
	Staff     MemberType = "staff"
	Foreigner MemberType = "foreigner"
)

// Gender as recorded on the membership form.
type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
	Other  Gender = "other"
)

// Member represents a library member.
type Member struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Code       string     `json:"code" db:"code"`
	Name       string     `json:"name" db:"name"`
	Phone      string     `json:"phone,omitempty" db:"phone"`
	Email      string     `json:"email,omitempty" db:"email"`
	MemberType MemberType `json:"member_type" db:"member_type"`
	Gender     Gender     `json:"gender" db:"gender"`
	Active     bool       `json:"active" db:"active"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Registration is the input for creating a member.
type Registration struct {
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone" validate:"omitempty,phone"`
	Email      string `json:"email" validate:"omitempty,email"`
	MemberType string `json:"member_type" validate:"required,oneof=student teacher staff foreigner"`
	Gender     string `json:"gender" validate:"required,oneof=male female other"`
}

// ListFilter narrows ListMembers. Zero values mean "no filter".
type ListFilter struct {
	Query      string
	MemberType MemberType
	Limit      int
	Offset     int
}

// MemberRegisteredEvent is journaled when a new member registers.
type MemberRegisteredEvent struct {
	ID         uuid.UUID  `json:"id"`
	Code       string     `json:"code"`
	Name       string     `json:"name"`
	MemberType MemberType `json:"member_type"`
}
