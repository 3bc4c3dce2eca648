package middleware

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// Validation limits.
const (
	// MaxEmailLength is the maximum length for an email address.
	MaxEmailLength = 254

	// MaxDisplayNameLength is the maximum length for a display name.
	MaxDisplayNameLength = 64

	// MinPasswordLength is the minimum length for a password.
	MinPasswordLength = 8

	// MaxPasswordLength caps passwords before they reach the hasher.
	MaxPasswordLength = 256

	// MaxTicketCodeLength bounds submitted ticket codes. Real codes are
	// 66 characters; anything longer is garbage.
	MaxTicketCodeLength = 128
)

// Validation errors.
var (
	ErrEmailInvalid       = errors.New("email address is invalid")
	ErrEmailTooLong       = errors.New("email address exceeds maximum length")
	ErrDisplayNameEmpty   = errors.New("display name is required")
	ErrDisplayNameTooLong = errors.New("display name exceeds maximum length")
	ErrDisplayNameInvalid = errors.New("display name contains control characters")
	ErrPasswordTooShort   = errors.New("password is too short")
	ErrPasswordTooLong    = errors.New("password exceeds maximum length")
	ErrTicketCodeTooLong  = errors.New("ticket code exceeds maximum length")
)

// emailPattern is a pragmatic email shape check, not an RFC 5322 parser.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateEmail validates an email address for registration and login.
func ValidateEmail(email string) error {
	if len(email) > MaxEmailLength {
		return ErrEmailTooLong
	}
	if !emailPattern.MatchString(email) {
		return ErrEmailInvalid
	}
	return nil
}

// ValidateDisplayName validates a member's display name.
func ValidateDisplayName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ErrDisplayNameEmpty
	}
	if len(trimmed) > MaxDisplayNameLength {
		return ErrDisplayNameTooLong
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return ErrDisplayNameInvalid
		}
	}
	return nil
}

// ValidatePassword enforces password length bounds. Strength policy
// beyond length is left to the client.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// ValidateTicketCode bounds a submitted ticket code before it reaches
// the lookup. Shape validation happens in the ticket service.
func ValidateTicketCode(code string) error {
	if len(code) > MaxTicketCodeLength {
		return ErrTicketCodeTooLong
	}
	return nil
}
