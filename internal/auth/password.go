package auth

import (
	"strings"
	"unicode"
)

const passwordPolicy = "Password must contain at least 8 characters, including uppercase, lowercase, and numbers"

// meetsPolicy requires 8+ characters with an upper case letter, a lower case
// letter and a digit.
func meetsPolicy(password string) bool {
	if len(password) < 8 {
		return false
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
