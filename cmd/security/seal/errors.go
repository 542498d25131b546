package seal

import "errors"

// Public, stable errors for callers.
var (
	ErrPassphraseMissing  = errors.New("seal passphrase missing")
	ErrPassphraseTooShort = errors.New("seal passphrase too short")
	ErrKeySize            = errors.New("seal key must be 32 bytes")
	ErrMalformed          = errors.New("sealed value malformed")
	ErrOpen               = errors.New("sealed value failed authentication")
)
