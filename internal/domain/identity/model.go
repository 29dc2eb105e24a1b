package identity

import (
	"time"

	"github.com/google/uuid"
)

// Patient is the booking identity of an authenticated user, keyed by the
// auth provider's subject.
type Patient struct {
	ID          uuid.UUID `db:"id" json:"id"`
	AuthUserID  string    `db:"auth_user_id" json:"auth_user_id"`
	FullName    string    `db:"full_name" json:"full_name"`
	Phone       string    `db:"phone" json:"phone"`
	Email       string    `db:"email" json:"email"`
	DateOfBirth time.Time `db:"date_of_birth" json:"date_of_birth"`
	Gender      string    `db:"gender" json:"gender"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Details are the patient fields collected when booking.
type Details struct {
	FullName    string    `json:"full_name"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Gender      string    `json:"gender"`
}

// Profile is what is known about the current user before they type anything.
// Zero fields are unknown.
type Profile struct {
	UserID      string     `json:"id"`
	Email       string     `json:"email,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	FullName    string     `json:"full_name,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Gender      string     `json:"gender,omitempty"`
}
