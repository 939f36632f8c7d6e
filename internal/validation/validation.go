// Package validation checks account and API key input before it reaches
// storage.
package validation

import (
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	// MinPasswordLength is the minimum password length in characters.
	MinPasswordLength = 8
	// MaxPasswordBytes is bcrypt's input limit.
	MaxPasswordBytes = 72
	// MaxNameLength bounds user and key names.
	MaxNameLength = 100
)

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is a bare address such as
// user@example.com (no display name, no angle brackets).
func ValidateEmail(email string) error {
	if email == "" {
		return NewValidationError("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return NewValidationError("email", "must be a valid email address")
	}
	return nil
}

// ValidatePassword checks the password length limits.
func ValidatePassword(password string) error {
	if password == "" {
		return NewValidationError("password", "is required")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return NewValidationError("password", "must be at least 8 characters")
	}
	if len(password) > MaxPasswordBytes {
		return NewValidationError("password", "must be at most 72 bytes")
	}
	return nil
}

// ValidateName checks a display or key name after trimming.
// field names the input in the error.
func ValidateName(field, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return NewValidationError(field, "is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return NewValidationError(field, "must be at most 100 characters")
	}
	return nil
}
