package authapi

import "github.com/mladen081/u-m/cmd/identity"

// Credentials are the login form fields.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration are the sign-up form fields.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PasswordResetConfirm completes a reset started by RequestPasswordReset.
type PasswordResetConfirm struct {
	UID      string `json:"uid"`
	Token    string `json:"token"`
	Password string `json:"password"`
}

type logoutRequest struct {
	Refresh string `json:"refresh"`
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

type userResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsAdmin  bool   `json:"is_admin"`

	// Some deployments serialize the flag in camel case.
	IsAdminCamel *bool `json:"isAdmin,omitempty"`
}

func (u userResponse) principal() identity.Principal {
	admin := u.IsAdmin
	if u.IsAdminCamel != nil {
		admin = admin || *u.IsAdminCamel
	}
	return identity.Principal{
		ID:       u.ID,
		Username: identity.NormalizeUsername(u.Username),
		Email:    identity.NormalizeEmail(u.Email),
		Role:     u.Role,
		IsAdmin:  admin,
	}
}

// loginResponse is shared by login and register.
type loginResponse struct {
	Access  string        `json:"access"`
	Refresh string        `json:"refresh"`
	User    *userResponse `json:"user"`
}
