// Package email normalizes and shape-checks email addresses.
package email

import (
	"regexp"
	"strings"
)

var shape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Normalize trims and lower-cases an address. Uniqueness is case-insensitive,
// so every stored and compared address goes through here.
func Normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// IsValid reports whether addr has the local@domain.tld shape.
func IsValid(addr string) bool {
	return shape.MatchString(addr)
}
