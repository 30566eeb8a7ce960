package app

import (
	"strings"

	"github.com/charlesng35/taskpad/internal/auth"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	issuer := strings.TrimSpace(c.JWT.Issuer)
	if issuer == "" {
		issuer = "taskpad"
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         issuer,
		AccessTokenTTL: ttl,
	}
}

// PasswordHasher builds the bcrypt hasher at the configured cost.
func (c AuthConfig) PasswordHasher() *auth.PasswordHasher {
	return auth.NewPasswordHasher(c.Password.BcryptCost)
}
