package models

import (
	"strings"
	"time"
)

// Challenge is a pending one-time code. Only the bcrypt hash of the code is kept.
type Challenge struct {
	HashedCode string
	ExpiresAt  time.Time
}

// ActiveAt reports whether the challenge can still be redeemed at now.
func (c *Challenge) ActiveAt(now time.Time) bool {
	return c != nil && c.HashedCode != "" && now.Before(c.ExpiresAt)
}

// Account is a registered user and its credential state. The two challenge
// slots are stored as independent column pairs so writing one never touches
// the other.
type Account struct {
	BaseModel

	Email        string `gorm:"uniqueIndex;size:254;not null" json:"email"`
	PasswordHash string `gorm:"size:100;not null" json:"-"`
	DisplayName  string `gorm:"size:100" json:"name"`
	IsVerified   bool   `gorm:"not null;default:false;index" json:"isVerified"`

	VerificationCodeHash  string     `gorm:"size:100" json:"-"`
	VerificationExpiresAt *time.Time `gorm:"index" json:"-"`
	ResetCodeHash         string     `gorm:"size:100" json:"-"`
	ResetExpiresAt        *time.Time `gorm:"index" json:"-"`

	// CredentialsChangedAt is stamped by password resets at millisecond
	// precision; sessions carrying an older stamp are rejected.
	CredentialsChangedAt *time.Time `json:"-"`
}

// NormalizeEmail trims and lowercases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DefaultDisplayName derives a display name from the local part of an email.
func DefaultDisplayName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

// VerificationChallenge returns the pending email verification challenge, if any.
func (a *Account) VerificationChallenge() *Challenge {
	return challengeFrom(a.VerificationCodeHash, a.VerificationExpiresAt)
}

// SetVerificationChallenge replaces (or with nil, clears) the verification challenge.
func (a *Account) SetVerificationChallenge(c *Challenge) {
	a.VerificationCodeHash, a.VerificationExpiresAt = challengeColumns(c)
}

// ResetChallenge returns the pending password reset challenge, if any.
func (a *Account) ResetChallenge() *Challenge {
	return challengeFrom(a.ResetCodeHash, a.ResetExpiresAt)
}

// SetResetChallenge replaces (or with nil, clears) the password reset challenge.
func (a *Account) SetResetChallenge(c *Challenge) {
	a.ResetCodeHash, a.ResetExpiresAt = challengeColumns(c)
}

// CredentialsVersion identifies the current password. It is zero until the
// first reset.
func (a *Account) CredentialsVersion() int64 {
	if a.CredentialsChangedAt == nil {
		return 0
	}
	return a.CredentialsChangedAt.UnixMilli()
}

// MarkCredentialsChanged stamps a new credentials version at now, moving
// strictly forward even when two resets land in the same millisecond.
func (a *Account) MarkCredentialsChanged(now time.Time) {
	stamp := now.UTC().Truncate(time.Millisecond)
	if prev := a.CredentialsChangedAt; prev != nil && !stamp.After(*prev) {
		stamp = prev.UTC().Truncate(time.Millisecond).Add(time.Millisecond)
	}
	a.CredentialsChangedAt = &stamp
}

func challengeFrom(hash string, expiresAt *time.Time) *Challenge {
	if hash == "" || expiresAt == nil {
		return nil
	}
	return &Challenge{HashedCode: hash, ExpiresAt: *expiresAt}
}

func challengeColumns(c *Challenge) (string, *time.Time) {
	if c == nil || c.HashedCode == "" {
		return "", nil
	}
	expires := c.ExpiresAt
	return c.HashedCode, &expires
}
