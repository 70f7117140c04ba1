package entity

import "strings"

// normalizeKeyPart lower-cases and trims a string for use in a case- and
// whitespace-insensitive comparison key.
func normalizeKeyPart(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
