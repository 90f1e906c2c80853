// Package validate holds the pure field-level checks applied to incoming
// input. Each check returns pass/fail with a human-readable message; callers
// accumulate every failure from one operation rather than stopping at the
// first, so clients see the full list at once.
package validate

import "regexp"

var (
	nameRe = regexp.MustCompile(`^[A-Za-z0-9 ]+$`)
	// Pragmatic email syntax check, same shape validator.js applies.
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Name passes iff s is non-empty and alphanumeric plus spaces
func Name(s string) (bool, string) {
	if !nameRe.MatchString(s) {
		return false, "Invalid Name."
	}
	return true, ""
}

// Score passes iff n is non-negative
func Score(n int64) (bool, string) {
	if n < 0 {
		return false, "Invalid score."
	}
	return true, ""
}

// Email passes iff s conforms to standard email syntax
func Email(s string) (bool, string) {
	if !emailRe.MatchString(s) {
		return false, "Invalid email."
	}
	return true, ""
}

// Password passes iff s is at least 5 characters
func Password(s string) (bool, string) {
	if len(s) < 5 {
		return false, "Password too short."
	}
	return true, ""
}
