package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// HashParams fix the PBKDF2-HMAC-SHA256 work factor. Stored hashes embed the
// salt, so verification of existing hashes keeps working as long as these
// lengths are not changed for a live deployment.
type HashParams struct {
	Iterations int
	SaltLength int
	KeyLength  int
}

// DefaultHashParams match the stored-hash format in production data.
var DefaultHashParams = HashParams{
	Iterations: 100_000,
	SaltLength: 32,
	KeyLength:  32,
}

const minIterations = 100_000

// Hasher derives and verifies one-way salted password hashes. It holds no
// mutable state and is safe for concurrent use.
type Hasher struct {
	params HashParams
}

// NewHasher validates the work factor up front. Iteration counts below the
// floor are a configuration error, not something to degrade to quietly.
func NewHasher(params HashParams) (*Hasher, error) {
	if params.Iterations < minIterations {
		return nil, fmt.Errorf("auth: pbkdf2 iterations %d below minimum %d", params.Iterations, minIterations)
	}
	if params.SaltLength < 16 {
		return nil, errors.New("auth: salt must be at least 16 bytes")
	}
	if params.KeyLength < 32 {
		return nil, errors.New("auth: derived key must be at least 32 bytes")
	}
	return &Hasher{params: params}, nil
}

// Hash derives base64(salt || key) from the password with a fresh random
// salt. Two calls with the same password produce different outputs.
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password is empty", ErrInvalidInput)
	}
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(password), salt, h.params.Iterations, h.params.KeyLength, sha256.New)
	buf := make([]byte, 0, len(salt)+len(key))
	buf = append(buf, salt...)
	buf = append(buf, key...)
	return base64.StdEncoding.EncodeToString(buf), nil
}

// Verify re-derives the key with the embedded salt and compares it to the
// stored key in constant time. Any malformed stored value is an
// authentication failure, never an error: a corrupt hash must behave exactly
// like a wrong password.
func (h *Hasher) Verify(password, stored string) bool {
	if password == "" || stored == "" {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return false
	}
	if len(raw) != h.params.SaltLength+h.params.KeyLength {
		return false
	}
	salt := raw[:h.params.SaltLength]
	want := raw[h.params.SaltLength:]
	got := pbkdf2.Key([]byte(password), salt, h.params.Iterations, h.params.KeyLength, sha256.New)
	return subtle.ConstantTimeCompare(want, got) == 1
}
