package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gatehouse.org/internal/audit"
)

// DefaultRegistrationRoleID is the role assigned when registration does not
// name one. It is the admin role as seeded by the migrations. Unauthenticated
// callers defaulting to the most privileged role is a known deployment
// hazard; gate the registration endpoint accordingly.
const DefaultRegistrationRoleID int64 = 1

// Service orchestrates credential exchange: login, registration and logout.
// Every audit emission here is best-effort; a dead audit store never changes
// an authentication decision.
type Service struct {
	store    Store
	hasher   *Hasher
	codec    *TokenCodec
	recorder *audit.Recorder
	now      func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService wires the authentication pipeline together.
func NewService(store Store, hasher *Hasher, codec *TokenCodec, recorder *audit.Recorder, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if hasher == nil || codec == nil {
		return nil, errors.New("auth: hasher and token codec are required")
	}
	if recorder == nil {
		recorder = audit.NewRecorder(nil)
	}
	svc := &Service{
		store:    store,
		hasher:   hasher,
		codec:    codec,
		recorder: recorder,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// LoginResult is returned on a successful credential exchange.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Identity  Identity
}

// Login runs the credential check, terminal on the first failing branch.
// Unknown email, missing hash and wrong password all surface as
// ErrInvalidCredentials so the response cannot be used to enumerate
// accounts; the audit reason records which branch actually fired.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		s.recordLoginFailure(ctx, nil, email, "invalid_credentials", audit.SeverityHigh)
		return LoginResult{}, ErrInvalidCredentials
	}

	acc, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.recordLoginFailure(ctx, nil, email, "invalid_credentials", audit.SeverityHigh)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("lookup account: %w", err)
	}
	if acc.PasswordHash == "" {
		s.recordLoginFailure(ctx, acc, email, "no_password", audit.SeverityHigh)
		return LoginResult{}, ErrInvalidCredentials
	}
	if !s.hasher.Verify(password, acc.PasswordHash) {
		s.recordLoginFailure(ctx, acc, email, "invalid_password", audit.SeverityHigh)
		return LoginResult{}, ErrInvalidCredentials
	}
	if !acc.Active {
		s.recordLoginFailure(ctx, acc, email, "user_inactive", audit.SeverityHigh)
		return LoginResult{}, ErrAccountInactive
	}
	role, ok := acc.PrimaryRole()
	if !ok {
		// An account without a role is misconfigured, not an attack.
		s.recordLoginFailure(ctx, acc, email, "no_role", audit.SeverityMedium)
		return LoginResult{}, ErrNoRoleAssigned
	}

	identity := Identity{
		ID:          acc.ID,
		Name:        acc.Name,
		Email:       acc.Email,
		Role:        role.Name,
		RoleID:      role.ID,
		Active:      acc.Active,
		Permissions: PermissionsForRole(role.Name),
	}
	token, expires, err := s.codec.Issue(identity)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	if err := s.store.TouchLastLogin(ctx, acc.ID, s.now().UTC()); err != nil {
		return LoginResult{}, fmt.Errorf("update last login: %w", err)
	}

	actor := acc.ID
	s.recorder.Record(ctx, &audit.Record{
		ActorID:      &actor,
		Action:       audit.ActionLoginSuccess,
		ResourceType: audit.ResourceAuth,
		Severity:     audit.SeverityMedium,
		Metadata:     map[string]any{"email": acc.Email, "role": role.Name},
	})

	return LoginResult{Token: token, ExpiresAt: expires, Identity: identity}, nil
}

// Register creates an active account with a hashed password and exactly one
// role. Email uniqueness is case-sensitive, matching FindByEmail.
func (s *Service) Register(ctx context.Context, name, email, password string, roleID int64) (*Account, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: name and a valid email are required", ErrInvalidInput)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if roleID == 0 {
		roleID = DefaultRegistrationRoleID
	}

	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	role, err := s.store.FindRole(ctx, roleID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown role %d", ErrInvalidInput, roleID)
		}
		return nil, fmt.Errorf("lookup role: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acc := &Account{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Active:       true,
		Roles:        []Role{*role},
	}
	if err := s.store.CreateAccount(ctx, acc); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	actor := acc.ID
	s.recorder.Record(ctx, &audit.Record{
		ActorID:      &actor,
		Action:       audit.ActionUserRegistered,
		ResourceType: audit.ResourceUser,
		ResourceID:   &acc.ID,
		Severity:     audit.SeverityMedium,
		Metadata:     map[string]any{"email": acc.Email, "role": role.Name},
	})
	return acc, nil
}

// Logout is stateless: the token stays valid until natural expiry, so all
// this does is leave an audit trace of the client-side event.
func (s *Service) Logout(ctx context.Context, actorID int64) {
	rec := &audit.Record{
		Action:       audit.ActionLogout,
		ResourceType: audit.ResourceAuth,
		Severity:     audit.SeverityMedium,
	}
	if actorID > 0 {
		rec.ActorID = &actorID
	}
	s.recorder.Record(ctx, rec)
}

func (s *Service) recordLoginFailure(ctx context.Context, acc *Account, email, reason string, severity audit.Severity) {
	rec := &audit.Record{
		Action:       audit.ActionLoginFailed,
		ResourceType: audit.ResourceAuth,
		Severity:     severity,
		Metadata:     map[string]any{"reason": reason, "email": email},
	}
	if acc != nil {
		actor := acc.ID
		rec.ActorID = &actor
	}
	s.recorder.Record(ctx, rec)
}
