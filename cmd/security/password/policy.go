package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// commonPasswords is a short slice of the server's common-password list: the
// entries people actually try first.
var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {}, "passw0rd": {},
	"123456": {}, "12345678": {}, "123456789": {}, "1234567890": {},
	"qwerty": {}, "qwerty123": {}, "qwertyuiop": {}, "11111111": {},
	"iloveyou": {}, "letmein": {}, "welcome": {}, "admin123": {},
	"abc12345": {}, "sunshine": {}, "football": {}, "baseball": {},
}

// Validate checks pw against the length bounds and, when RejectVeryWeak is
// set, the common-password and numeric-only rules. Lengths count runes.
func (c Config) Validate(pw string) error {
	return c.ValidateFor(pw)
}

// ValidateFor is Validate plus a similarity check against the account's own
// attributes (username, email), which the server also refuses.
func (c Config) ValidateFor(pw string, attrs ...string) error {
	switch n := utf8.RuneCountInString(pw); {
	case n < c.Policy.MinLength:
		return ErrPasswordTooShort
	case n > c.Policy.MaxLength:
		return ErrPasswordTooLong
	}
	if !c.Policy.RejectVeryWeak {
		return nil
	}

	s := strings.ToLower(strings.TrimSpace(pw))
	if _, common := commonPasswords[s]; common || repeatsOneRune(s) || allDigits(s) {
		return ErrWeakPassword
	}
	for _, a := range attrs {
		if similar(s, a) {
			return ErrSimilarToAccount
		}
	}
	return nil
}

func repeatsOneRune(s string) bool {
	first, _ := utf8.DecodeRuneInString(s)
	return strings.Trim(s, string(first)) == ""
}

func allDigits(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) }) < 0
}

// similar reports whether the password contains the attribute or the other
// way round. The local part of an email is compared on its own.
func similar(pw, attr string) bool {
	attr = strings.ToLower(strings.TrimSpace(attr))
	if at := strings.IndexByte(attr, '@'); at > 0 {
		attr = attr[:at]
	}
	if utf8.RuneCountInString(attr) < 3 {
		return false
	}
	return strings.Contains(pw, attr) || strings.Contains(attr, pw)
}
