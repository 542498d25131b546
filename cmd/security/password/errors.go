package password

import "errors"

var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrWeakPassword     = errors.New("password too common")
	ErrSimilarToAccount = errors.New("password too similar to account details")

	ErrInvalidSalt     = errors.New("invalid key derivation salt")
	ErrEmptyPassphrase = errors.New("empty passphrase")
)
