package security

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/taskpad/internal/app"
	testutil "github.com/charlesng35/taskpad/internal/database/testutil"
	"github.com/charlesng35/taskpad/internal/models"
)

func hardenedConfig() *app.Config {
	cfg := &app.Config{}
	cfg.Auth.JWT.Secret = "0123456789abcdef0123456789abcdef0123456789abcdef"
	cfg.Auth.JWT.TTL = 168 * time.Hour
	cfg.Auth.Password.BcryptCost = 12
	cfg.Auth.UnverifiedRetention = 168 * time.Hour
	cfg.Email.SMTP = app.SMTPConfig{Enabled: true, Host: "smtp.example.com", Port: 587}
	cfg.Server.CORSOrigins = []string{"https://taskpad.example.com"}
	return cfg
}

func findCheck(t *testing.T, result Result, id string) Check {
	t.Helper()
	for _, check := range result.Checks {
		if check.ID == id {
			return check
		}
	}
	t.Fatalf("check %s not found", id)
	return Check{}
}

func TestAuditServiceRunHardened(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	svc := NewAuditService(db, hardenedConfig())
	fixed := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return fixed })

	result := svc.Run(context.Background())
	require.Equal(t, fixed, result.CheckedAt)
	require.Len(t, result.Checks, 6)
	require.Equal(t, 6, result.Summary[string(StatusPass)])
	require.False(t, result.Failed())
}

func TestAuditServiceFlagsWeakSettings(t *testing.T) {
	cfg := &app.Config{}
	cfg.Auth.JWT.Secret = "short"
	cfg.Auth.JWT.TTL = 90 * 24 * time.Hour
	cfg.Auth.Password.BcryptCost = 4
	cfg.Server.CORSOrigins = []string{"*"}

	result := NewAuditService(nil, cfg).Run(context.Background())
	require.True(t, result.Failed())

	require.Equal(t, StatusFail, findCheck(t, result, "jwt_secret_strength").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "session_ttl").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "bcrypt_cost").Status)
	require.Equal(t, StatusFail, findCheck(t, result, "email_delivery").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "cors_origins").Status)
	require.Equal(t, StatusPass, findCheck(t, result, "unverified_backlog").Status)

	cfg.Email.AllowDisabled = true
	result = NewAuditService(nil, cfg).Run(context.Background())
	require.Equal(t, StatusWarn, findCheck(t, result, "email_delivery").Status)
}

func TestAuditServiceDetectsUnverifiedBacklog(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

	stale := &models.Account{Email: "stale@example.com", PasswordHash: "hash"}
	stale.CreatedAt = now.Add(-30 * 24 * time.Hour)
	require.NoError(t, db.Create(stale).Error)

	verified := &models.Account{Email: "old@example.com", PasswordHash: "hash", IsVerified: true}
	verified.CreatedAt = now.Add(-30 * 24 * time.Hour)
	require.NoError(t, db.Create(verified).Error)

	svc := NewAuditService(db, hardenedConfig())
	svc.WithClock(func() time.Time { return now })

	check := findCheck(t, svc.Run(context.Background()), "unverified_backlog")
	require.Equal(t, StatusWarn, check.Status)
	require.Equal(t, map[string]any{"count": int64(1)}, check.Details)
}

func TestAuditServiceWithoutConfig(t *testing.T) {
	result := NewAuditService(nil, nil).Run(context.Background())
	require.True(t, result.Failed())
	require.Len(t, result.Checks, 1)
}
