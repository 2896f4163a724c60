// Package password hashes and verifies account passwords with bcrypt.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/staffhub/staffhub/internal/shared"
)

// Hasher is the one-way hash plus comparison used for credential checks.
type Hasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) bool
}

// Bcrypt implements Hasher.
type Bcrypt struct {
	cost  int
	dummy []byte
}

// NewBcrypt returns a Bcrypt hasher. A cost outside bcrypt's range falls back
// to bcrypt.DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("staffhub-unknown-account"), cost)
	if err != nil {
		panic(err)
	}
	return &Bcrypt{cost: cost, dummy: dummy}
}

// MaxBytes is the longest password bcrypt accepts.
const MaxBytes = 72

// Hash returns the salted hash of plain. Passwords over MaxBytes fail with a
// validation error on the password field.
func (b *Bcrypt) Hash(plain string) (string, error) {
	if plain == "" {
		return "", errors.New("password: empty password")
	}
	if len(plain) > MaxBytes {
		return "", &shared.ValidationError{Fields: map[string]string{"password": "Must be at most 72 bytes."}}
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), b.cost)
	if err != nil {
		return "", fmt.Errorf("password: hash: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plain matches hash. bcrypt compares in constant time.
func (b *Bcrypt) Verify(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Burn performs a comparison against a fixed hash so that lookups for unknown
// accounts take as long as real ones.
func (b *Bcrypt) Burn(plain string) {
	_ = bcrypt.CompareHashAndPassword(b.dummy, []byte(plain))
}
