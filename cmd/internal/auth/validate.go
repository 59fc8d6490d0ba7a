package auth

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Format allowlists. These reject malformed input cheaply before any
// credential-store call; they are not business rules.
var (
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

const maxDisplayNameLen = 80

// Validation messages surfaced to users.
const (
	errUsernameFormat  = "Username must be 3-32 characters: letters, digits, underscore."
	errEmailFormat     = "Email address is not valid."
	errNameLength      = "Name must be between 1 and 80 characters."
	errPasswordConfirm = "Both password fields are required to change the password."
	errPasswordMatch   = "Passwords do not match."
)

// normalizeUsername performs case-insensitive canonicalization.
func normalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validUsername(s string) bool {
	return usernameRe.MatchString(s)
}

// validEmail checks shape only. Callers decide whether empty is allowed.
func validEmail(s string) bool {
	return emailRe.MatchString(s)
}

func validDisplayName(s string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return n >= 1 && n <= maxDisplayNameLen
}

// reservedUsernames collide with operational or demo accounts. Attempts to
// register them get the same "taken" message as a real collision.
var reservedUsernames = map[string]struct{}{
	"admin":           {},
	"administrator":   {},
	"root":            {},
	"system":          {},
	"support":         {},
	"demo":            {},
	"guest":           {},
	"scenariobuilder": {},
}

func isReservedUsername(norm string) bool {
	_, ok := reservedUsernames[norm]
	return ok
}
