package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.EqualError(t, err, "jwt: secret must be provided")
}

func TestNewJWTServiceDefaultsTTL(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "s"})
	require.NoError(t, err)
	require.Equal(t, 7*24*time.Hour, svc.TTL())
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewJWTService(JWTConfig{
		Secret:         "super-secret",
		Issuer:         "taskpad",
		AccessTokenTTL: time.Hour,
		Clock:          func() time.Time { return current },
	})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken(AccessTokenInput{AccountID: "acc-123"})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, "acc-123", claims.AccountID)
	require.Equal(t, "acc-123", claims.Subject)
	require.Equal(t, "taskpad", claims.Issuer)
	require.True(t, claims.IssuedAt.Time.Equal(current))
	require.True(t, claims.ExpiresAt.Time.Equal(current.Add(time.Hour)))

	require.Zero(t, claims.CredentialsVersion)

	_, err = svc.GenerateAccessToken(AccessTokenInput{})
	require.Error(t, err)
}

func TestAccessTokenCarriesCredentialsVersion(t *testing.T) {
	current := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewJWTService(JWTConfig{Secret: "super-secret", Clock: func() time.Time { return current }})
	require.NoError(t, err)

	version := current.Add(250 * time.Millisecond).UnixMilli()
	token, err := svc.GenerateAccessToken(AccessTokenInput{AccountID: "acc-123", CredentialsVersion: version})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	require.Equal(t, version, claims.CredentialsVersion)
}

func TestValidateAccessTokenInvalidSignature(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC) }

	issuer, err := NewJWTService(JWTConfig{Secret: "issuer-secret", Clock: now})
	require.NoError(t, err)
	token, err := issuer.GenerateAccessToken(AccessTokenInput{AccountID: "acc-123"})
	require.NoError(t, err)

	verifier, err := NewJWTService(JWTConfig{Secret: "other-secret", Clock: now})
	require.NoError(t, err)

	_, err = verifier.ValidateAccessToken(token)
	require.ErrorIs(t, err, ErrTokenInvalid)
	require.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	require.NotErrorIs(t, err, ErrTokenExpired)
}

func TestValidateAccessTokenExpired(t *testing.T) {
	current := time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)
	svc, err := NewJWTService(JWTConfig{
		Secret:         "secret",
		AccessTokenTTL: time.Minute,
		Clock:          func() time.Time { return current },
	})
	require.NoError(t, err)

	token, err := svc.GenerateAccessToken(AccessTokenInput{AccountID: "acc-123"})
	require.NoError(t, err)

	current = current.Add(2 * time.Minute)

	_, err = svc.ValidateAccessToken(token)
	require.ErrorIs(t, err, ErrTokenExpired)
	require.NotErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateAccessTokenRejectsMalformedAndForeign(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC) }
	svc, err := NewJWTService(JWTConfig{Secret: "secret", Issuer: "taskpad", Clock: now})
	require.NoError(t, err)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := svc.ValidateAccessToken(token)
		require.ErrorIs(t, err, ErrTokenInvalid, token)
	}

	other, err := NewJWTService(JWTConfig{Secret: "secret", Issuer: "someone-else", Clock: now})
	require.NoError(t, err)
	foreign, err := other.GenerateAccessToken(AccessTokenInput{AccountID: "acc-1"})
	require.NoError(t, err)
	_, err = svc.ValidateAccessToken(foreign)
	require.ErrorIs(t, err, ErrTokenInvalid)

	// Same secret, but signed with HS512: the algorithm is pinned to HS256.
	claims := Claims{AccountID: "acc-1", RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "taskpad",
		ExpiresAt: jwt.NewNumericDate(now().Add(time.Hour)),
	}}
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ValidateAccessToken(hs512)
	require.ErrorIs(t, err, ErrTokenInvalid)

	// Missing account id.
	anonymous, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "taskpad",
		ExpiresAt: jwt.NewNumericDate(now().Add(time.Hour)),
	}}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = svc.ValidateAccessToken(anonymous)
	require.ErrorIs(t, err, ErrTokenInvalid)

	// Tampered payload.
	valid, err := svc.GenerateAccessToken(AccessTokenInput{AccountID: "acc-1"})
	require.NoError(t, err)
	parts := strings.Split(valid, ".")
	parts[1] = parts[1] + "x"
	_, err = svc.ValidateAccessToken(strings.Join(parts, "."))
	require.ErrorIs(t, err, ErrTokenInvalid)
}
