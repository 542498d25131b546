package identity

import "strings"

// NormalizeUsername trims surrounding whitespace. Case is preserved because the
// server matches usernames case-insensitively but displays them as registered.
func NormalizeUsername(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
