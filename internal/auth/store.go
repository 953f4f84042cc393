package auth

import (
	"context"
	"time"
)

// Store describes the account persistence this package needs. Implementations
// must return ErrNotFound for missing rows and load Roles in a deterministic
// order (oldest assignment first).
type Store interface {
	// FindByEmail matches the email exactly, case-sensitively.
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindRole(ctx context.Context, id int64) (*Role, error)
	// CreateAccount persists acc with its single role assignment and fills
	// in the generated id and timestamps.
	CreateAccount(ctx context.Context, acc *Account) error
	TouchLastLogin(ctx context.Context, accountID int64, at time.Time) error
}
