package identity

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Principal is the authenticated user as last reported by the server.
type Principal struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	IsAdmin  bool   `json:"is_admin"`
}

// DisplayName is the best human label for the principal.
func (p Principal) DisplayName() string {
	if s := strings.TrimSpace(p.Username); s != "" {
		return s
	}
	if s := strings.TrimSpace(p.Email); s != "" {
		return s
	}
	return fmt.Sprintf("user#%d", p.ID)
}

// EncodePrincipal serializes p for a storage slot.
func EncodePrincipal(p Principal) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode principal: %w", err)
	}
	return string(b), nil
}

// DecodePrincipal parses a storage slot. Blank input reports ErrNoPrincipal.
func DecodePrincipal(raw string) (Principal, error) {
	if strings.TrimSpace(raw) == "" {
		return Principal{}, ErrNoPrincipal
	}
	var p Principal
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Principal{}, fmt.Errorf("decode principal: %w", err)
	}
	return p, nil
}
