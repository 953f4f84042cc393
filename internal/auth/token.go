package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenConfig is the immutable signing configuration, loaded once at startup
// and injected here. Construction fails without a secret; token issuance must
// never discover a missing key at request time.
type TokenConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
}

const defaultTokenTTL = time.Hour

// Claims is the signed bundle of identity facts carried by an access token.
// Validity is derived entirely from the signature and expiry; there is no
// session store and no revocation before expiry.
type Claims struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	RoleID int64  `json:"role_id"`
	Active bool   `json:"active"`
	jwt.RegisteredClaims
}

// SubjectID returns the numeric account id from the subject claim.
func (c *Claims) SubjectID() (int64, bool) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// TokenCodec signs and verifies HS256 access tokens. It holds no mutable
// state and is safe for concurrent use.
type TokenCodec struct {
	cfg  TokenConfig
	now  func() time.Time
	opts []jwt.ParserOption
}

// NewTokenCodec validates the configuration and builds the parser options.
// Expiry is checked with zero leeway: a token is invalid the instant it
// expires. That is stricter than typical deployments and deliberate.
func NewTokenCodec(cfg TokenConfig, opts ...TokenOption) (*TokenCodec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: token signing secret is not configured")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("auth: token issuer and audience are required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTokenTTL
	}
	c := &TokenCodec{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	c.opts = []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	}
	return c, nil
}

// TokenOption configures a TokenCodec.
type TokenOption func(*TokenCodec)

// WithTokenClock overrides the time source (useful for tests).
func WithTokenClock(fn func() time.Time) TokenOption {
	return func(c *TokenCodec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// TTL returns the configured token lifetime.
func (c *TokenCodec) TTL() time.Duration { return c.cfg.TTL }

// Issue signs a token for the identity, valid from now until now+TTL.
func (c *TokenCodec) Issue(id Identity) (string, time.Time, error) {
	now := c.now().UTC()
	expires := now.Add(c.cfg.TTL)
	claims := Claims{
		Email:  id.Email,
		Name:   id.Name,
		Role:   id.Role,
		RoleID: id.RoleID,
		Active: id.Active,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.cfg.Issuer,
			Audience:  jwt.ClaimStrings{c.cfg.Audience},
			Subject:   strconv.FormatInt(id.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.cfg.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Validate verifies signature, issuer, audience and expiry. Malformed,
// mis-signed, tampered and expired tokens all collapse to ErrInvalidToken;
// callers get no detail beyond "invalid".
func (c *TokenCodec) Validate(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return c.cfg.Secret, nil
	}, c.opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if _, ok := claims.SubjectID(); !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SubjectID validates the token and extracts the account id, discarding the
// rest of the claims. Convenience for callers that only need the actor.
func (c *TokenCodec) SubjectID(raw string) (int64, bool) {
	claims, err := c.Validate(raw)
	if err != nil {
		return 0, false
	}
	return claims.SubjectID()
}
