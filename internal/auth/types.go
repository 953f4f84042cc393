package auth

import "time"

// Account is the identity record behind a login. PasswordHash is empty for
// accounts that authenticate elsewhere (federated-only). Lifecycle beyond
// password-at-creation and last-login updates belongs to user administration.
type Account struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Active       bool
	LastLoginAt  *time.Time
	Roles        []Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PrimaryRole returns the account's first role. Accounts are expected to
// carry exactly one role; the store orders the role join deterministically so
// this stays stable if that assumption is ever violated.
func (a *Account) PrimaryRole() (Role, bool) {
	if len(a.Roles) == 0 {
		return Role{}, false
	}
	return a.Roles[0], true
}

// Role groups permissions under a name. The set is small and effectively
// static; permissions are resolved from the name at login.
type Role struct {
	ID          int64
	Name        string
	Description string
}

// Identity is the verified view of an account that travels with a request:
// token claims plus the permission list resolved from the primary role.
type Identity struct {
	ID          int64
	Name        string
	Email       string
	Role        string
	RoleID      int64
	Active      bool
	Permissions []string
}
