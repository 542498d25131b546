package credential

import (
	"regexp"
	"strings"
)

var profileRe = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,64}$`)

// DefaultProfile is used when no profile is configured.
const DefaultProfile = "default"

func normalizeProfile(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return DefaultProfile, nil
	}
	if !profileRe.MatchString(p) {
		return "", ErrInvalidProfile
	}
	return p, nil
}
