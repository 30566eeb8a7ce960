package auth

import (
	"fmt"
	"time"

	"github.com/charlesng35/taskpad/internal/models"
	"github.com/charlesng35/taskpad/pkg/crypto"
)

const (
	// OTPTTL is how long an issued code stays redeemable.
	OTPTTL = 10 * time.Minute

	otpMin  = 1000
	otpSpan = 9000
)

// OTPEngine issues and checks 4-digit one-time codes. Codes are returned to
// the caller exactly once; only their bcrypt hash is kept on the challenge.
type OTPEngine struct {
	hasher *PasswordHasher
	now    func() time.Time
}

// NewOTPEngine builds an engine hashing codes with hasher. A nil clock uses time.Now.
func NewOTPEngine(hasher *PasswordHasher, clock func() time.Time) *OTPEngine {
	if clock == nil {
		clock = time.Now
	}
	return &OTPEngine{hasher: hasher, now: clock}
}

// Issue generates a code in 1000-9999 and the challenge that redeems it.
func (e *OTPEngine) Issue() (string, models.Challenge, error) {
	n, err := crypto.RandomInt(otpSpan)
	if err != nil {
		return "", models.Challenge{}, fmt.Errorf("otp: generate: %w", err)
	}
	code := fmt.Sprintf("%04d", otpMin+n)

	hash, err := e.hasher.Hash(code)
	if err != nil {
		return "", models.Challenge{}, err
	}

	return code, models.Challenge{
		HashedCode: hash,
		ExpiresAt:  e.now().UTC().Add(OTPTTL),
	}, nil
}

// Verify reports whether candidate redeems challenge. Expiry is checked
// before any hashing; a challenge is dead from its ExpiresAt instant on.
func (e *OTPEngine) Verify(candidate string, challenge *models.Challenge) bool {
	if challenge == nil || challenge.HashedCode == "" {
		return false
	}
	if !e.now().Before(challenge.ExpiresAt) {
		return false
	}
	return e.hasher.Verify(candidate, challenge.HashedCode)
}
