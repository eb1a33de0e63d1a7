// ABOUTME: Credential hashing capability backed by bcrypt
// ABOUTME: Hash/Verify keep digests opaque to the rest of lendtrack

package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptySecret is returned when hashing an empty secret
var ErrEmptySecret = errors.New("secret must not be empty")

// dummyDigest is compared against when no real digest exists, so a lookup
// miss costs the same as a wrong secret.
const dummyDigest = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Hasher turns secrets into opaque digests and checks them
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
}

// BcryptHasher implements Hasher with golang.org/x/crypto/bcrypt
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a hasher. A cost outside bcrypt's range falls back
// to bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns the bcrypt digest of secret.
func (h *BcryptHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("hashing secret: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether secret matches digest. An empty digest is compared
// against a dummy hash to keep timing constant, then rejected.
func (h *BcryptHasher) Verify(secret, digest string) bool {
	if digest == "" {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyDigest), []byte(secret))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}
