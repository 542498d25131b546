package identity

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mladen081/u-m/cmd/security/password"
)

const (
	usernameMinLen = 3
	usernameMaxLen = 150
)

// ValidateLogin checks that both login fields are present.
func ValidateLogin(username, pw string) error {
	fe := FieldErrors{}
	if NormalizeUsername(username) == "" {
		fe.Add("username", "Username is required")
	}
	if pw == "" {
		fe.Add("password", "Password is required")
	}
	return fe.Err()
}

// ValidateRegistration applies the server's sign-up rules locally.
func ValidateRegistration(username, email, pw string, policy password.Config) error {
	fe := FieldErrors{}

	u := NormalizeUsername(username)
	switch n := utf8.RuneCountInString(u); {
	case n == 0:
		fe.Add("username", "Username is required")
	case n < usernameMinLen:
		fe.Add("username", fmt.Sprintf("Username must be at least %d characters", usernameMinLen))
	case n > usernameMaxLen:
		fe.Add("username", fmt.Sprintf("Username must be at most %d characters", usernameMaxLen))
	}

	e := NormalizeEmail(email)
	switch {
	case e == "":
		fe.Add("email", "Email is required")
	case !strings.Contains(e, "@") || !strings.Contains(e, "."):
		fe.Add("email", "Enter a valid email address")
	}

	if pw == "" {
		fe.Add("password", "Password is required")
	} else if err := policy.ValidateFor(pw, u, e); err != nil {
		fe.Add("password", passwordMessage(err, policy))
	}

	return fe.Err()
}

func passwordMessage(err error, policy password.Config) string {
	switch {
	case errors.Is(err, password.ErrPasswordTooShort):
		return fmt.Sprintf("Password must be at least %d characters", policy.Policy.MinLength)
	case errors.Is(err, password.ErrPasswordTooLong):
		return fmt.Sprintf("Password must be at most %d characters", policy.Policy.MaxLength)
	case errors.Is(err, password.ErrWeakPassword):
		return "This password is too common."
	case errors.Is(err, password.ErrSimilarToAccount):
		return "The password is too similar to the username or email."
	default:
		return err.Error()
	}
}
