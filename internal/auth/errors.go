package auth

import "errors"

var (
	// ErrInvalidCredentials covers unknown email, missing password hash and
	// wrong password alike. The caller-facing message must stay identical
	// across those cases; the distinction lives only in the audit trail.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	ErrAccountInactive = errors.New("auth: account inactive")
	ErrNoRoleAssigned  = errors.New("auth: no role assigned")
	ErrEmailTaken      = errors.New("auth: email already registered")
	ErrInvalidToken    = errors.New("auth: invalid token")
	ErrInvalidInput    = errors.New("auth: invalid input")
	ErrNotFound        = errors.New("auth: not found")
)
