package auth

import (
	"errors"
	"fmt"

	"github.com/charlesng35/taskpad/pkg/crypto"
)

// ErrHashing is returned when bcrypt fails to produce a hash.
var ErrHashing = errors.New("auth: hashing failed")

// PasswordHasher hashes and verifies secrets with bcrypt at a fixed cost.
// Both passwords and one-time codes go through it.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher using cost, clamped into bcrypt's range.
func NewPasswordHasher(cost int) *PasswordHasher {
	return &PasswordHasher{cost: crypto.NormalizeCost(cost)}
}

// Cost reports the effective bcrypt cost.
func (h *PasswordHasher) Cost() int {
	return h.cost
}

// Hash returns a freshly salted bcrypt hash of plaintext.
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	hash, err := crypto.HashPasswordWithCost(plaintext, h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrHashing, err)
	}
	return hash, nil
}

// Verify reports whether plaintext matches hash. Malformed hashes never match.
func (h *PasswordHasher) Verify(plaintext, hash string) bool {
	return crypto.VerifyPassword(hash, plaintext)
}
