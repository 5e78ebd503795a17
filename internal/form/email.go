package form

import (
	"regexp"
	"strings"
)

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail is a shape check (local@domain.tld), not deliverability.
func ValidEmail(email string) bool {
	return emailShape.MatchString(strings.TrimSpace(email))
}
