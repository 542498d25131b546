package credential

import "errors"

var (
	// ErrIncompletePair is returned when Write is given a pair missing either token.
	ErrIncompletePair = errors.New("credential pair requires access and refresh tokens")

	// ErrEmptyToken is returned when UpdateAccess is given an empty token.
	ErrEmptyToken = errors.New("empty access token")

	// ErrInvalidProfile is returned for blank or malformed profile names.
	ErrInvalidProfile = errors.New("invalid credential profile")
)
