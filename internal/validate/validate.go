package validate

import (
	"fmt"
	"net/mail"
	"strings"
)

// Field limits shared by the login form, the API and the CLI.
const (
	MaxEmailLength       = 254
	MinPasswordLength    = 8
	MaxPasswordLength    = 72 // bcrypt ignores anything longer
	MaxRoleLength        = 32
	MaxDisplayNameLength = 100
	MaxTitleLength       = 500
	MaxDescriptionLength = 5000
)

// KnownRoles are the roles a profile document may carry.
var KnownRoles = []string{"premium", "basic"}

func checkLen(value string, max int, field string) string {
	if len(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

// Email returns a message describing why s is not a usable address, or "".
func Email(s string) string {
	if s == "" {
		return "email is required"
	}
	if msg := checkLen(s, MaxEmailLength, "email"); msg != "" {
		return msg
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "invalid email address"
	}
	return ""
}

func Password(s string) string {
	switch {
	case s == "":
		return "password is required"
	case len(s) < MinPasswordLength:
		return fmt.Sprintf("password must be at least %d characters", MinPasswordLength)
	case len(s) > MaxPasswordLength:
		return fmt.Sprintf("password must be at most %d characters", MaxPasswordLength)
	}
	return ""
}

func Role(s string) string {
	if s == "" {
		return ""
	}
	for _, r := range KnownRoles {
		if s == r {
			return ""
		}
	}
	return fmt.Sprintf("role must be one of %s", strings.Join(KnownRoles, ", "))
}

func DisplayName(s string) string { return checkLen(s, MaxDisplayNameLength, "display name") }
func Title(s string) string       { return checkLen(s, MaxTitleLength, "title") }
func Description(s string) string { return checkLen(s, MaxDescriptionLength, "description") }
