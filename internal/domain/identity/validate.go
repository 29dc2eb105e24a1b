package identity

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/medibook/medibook/pkg/apperrors"
)

var validGenders = map[string]bool{
	"male": true, "female": true, "other": true, "prefer_not_to_say": true,
}

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{5,19}$`)

// Normalize trims whitespace and lowercases the email and gender.
func (d Details) Normalize() Details {
	d.FullName = strings.TrimSpace(d.FullName)
	d.Phone = strings.TrimSpace(d.Phone)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.Gender = strings.ToLower(strings.TrimSpace(d.Gender))
	return d
}

// Validate checks every required patient field. now bounds the date of birth.
func (d Details) Validate(now time.Time) error {
	if d.FullName == "" {
		return apperrors.Validation("full_name", "is required")
	}
	if d.Phone == "" {
		return apperrors.Validation("phone", "is required")
	}
	if !phonePattern.MatchString(d.Phone) {
		return apperrors.Validation("phone", "is not a valid phone number")
	}
	if d.Email == "" {
		return apperrors.Validation("email", "is required")
	}
	if addr, err := mail.ParseAddress(d.Email); err != nil || addr.Address != d.Email {
		return apperrors.Validation("email", "is not a valid email address")
	}
	if d.DateOfBirth.IsZero() {
		return apperrors.Validation("date_of_birth", "is required")
	}
	if d.DateOfBirth.After(now) {
		return apperrors.Validation("date_of_birth", "must not be in the future")
	}
	if d.Gender == "" {
		return apperrors.Validation("gender", "is required")
	}
	if !validGenders[d.Gender] {
		return apperrors.Validation("gender", "must be one of male, female, other, prefer_not_to_say")
	}
	return nil
}
