package security

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/charlesng35/taskpad/internal/app"
	"github.com/charlesng35/taskpad/internal/models"
	"github.com/charlesng35/taskpad/pkg/crypto"
)

// CheckStatus captures the outcome of a security audit check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

const (
	minSecretBytes         = 32
	recommendedSecretBytes = 48
	maxRecommendedTTL      = 30 * 24 * time.Hour
)

// Check contains the result of a single audit verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a per-status count.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// Failed reports whether any check failed outright.
func (r Result) Failed() bool {
	return r.Summary[string(StatusFail)] > 0
}

// AuditService reviews a deployment's configuration and, when a SQL handle
// is available, its account table.
type AuditService struct {
	db  *gorm.DB
	cfg *app.Config
	now func() time.Time
}

// NewAuditService constructs the audit service. db may be nil; the checks
// that need it degrade to warnings.
func NewAuditService(db *gorm.DB, cfg *app.Config) *AuditService {
	return &AuditService{db: db, cfg: cfg, now: time.Now}
}

// WithClock overrides the clock used in results and cutoffs.
func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Run executes all audit checks and returns their outcome.
func (s *AuditService) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	var checks []Check
	if s.cfg == nil {
		checks = []Check{{
			ID:          "configuration",
			Status:      StatusFail,
			Message:     "Configuration not loaded.",
			Remediation: "Load configuration before running the security audit.",
		}}
	} else {
		checks = []Check{
			s.checkJWTSecret(),
			s.checkSessionTTL(),
			s.checkBcryptCost(),
			s.checkEmailDelivery(),
			s.checkCORS(),
			s.checkUnverifiedBacklog(ctx),
		}
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}
	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{
		CheckedAt: s.now().UTC(),
		Checks:    checks,
		Summary:   summary,
	}
}

func (s *AuditService) checkJWTSecret() Check {
	length := len(strings.TrimSpace(s.cfg.Auth.JWT.Secret))

	switch {
	case length == 0:
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusFail,
			Message:     "No JWT signing secret is configured; the server generates one per start and sessions do not survive restarts.",
			Remediation: "Set TASKPAD_AUTH_JWT_SECRET to a random value of at least 48 bytes.",
		}
	case length < minSecretBytes:
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusFail,
			Message:     fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			Remediation: "Use a randomly generated secret of at least 32 bytes.",
			Details:     map[string]any{"length": length},
		}
	case length < recommendedSecretBytes:
		return Check{
			ID:          "jwt_secret_strength",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes. Consider increasing to 48+ bytes.", length),
			Remediation: "Increase the length of TASKPAD_AUTH_JWT_SECRET to at least 48 bytes.",
			Details:     map[string]any{"length": length},
		}
	default:
		return Check{
			ID:      "jwt_secret_strength",
			Status:  StatusPass,
			Message: fmt.Sprintf("JWT signing secret length is %d bytes.", length),
			Details: map[string]any{"length": length},
		}
	}
}

func (s *AuditService) checkSessionTTL() Check {
	ttl := s.cfg.Auth.JWTServiceConfig().AccessTokenTTL
	if ttl > maxRecommendedTTL {
		return Check{
			ID:          "session_ttl",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Session lifetime (%s) exceeds the recommended maximum (%s).", ttl, maxRecommendedTTL),
			Remediation: "Lower auth.jwt.access_token_ttl; sessions cannot be revoked individually.",
			Details:     map[string]any{"ttl": ttl.String()},
		}
	}
	return Check{
		ID:      "session_ttl",
		Status:  StatusPass,
		Message: fmt.Sprintf("Session lifetime is %s.", ttl),
		Details: map[string]any{"ttl": ttl.String()},
	}
}

func (s *AuditService) checkBcryptCost() Check {
	cost := crypto.NormalizeCost(s.cfg.Auth.Password.BcryptCost)
	if cost < bcrypt.DefaultCost {
		return Check{
			ID:          "bcrypt_cost",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("bcrypt cost %d is below the default of %d.", cost, bcrypt.DefaultCost),
			Remediation: "Raise auth.password.bcrypt_cost to at least 10 outside of tests.",
			Details:     map[string]any{"cost": cost},
		}
	}
	return Check{
		ID:      "bcrypt_cost",
		Status:  StatusPass,
		Message: fmt.Sprintf("bcrypt cost is %d.", cost),
		Details: map[string]any{"cost": cost},
	}
}

func (s *AuditService) checkEmailDelivery() Check {
	email := s.cfg.Email
	switch {
	case email.SMTP.Enabled:
		return Check{
			ID:      "email_delivery",
			Status:  StatusPass,
			Message: fmt.Sprintf("SMTP delivery via %s:%d.", email.SMTP.Host, email.SMTP.Port),
		}
	case email.AllowDisabled:
		return Check{
			ID:          "email_delivery",
			Status:      StatusWarn,
			Message:     "SMTP is disabled; verification and reset codes are logged instead of sent.",
			Remediation: "Configure email.smtp and unset email.allow_disabled before going live.",
		}
	default:
		return Check{
			ID:          "email_delivery",
			Status:      StatusFail,
			Message:     "SMTP is disabled; signups and password resets will fail with EMAIL_DELIVERY_FAILED.",
			Remediation: "Configure email.smtp.",
		}
	}
}

func (s *AuditService) checkCORS() Check {
	origins := s.cfg.Server.CORSOrigins
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return Check{
			ID:          "cors_origins",
			Status:      StatusWarn,
			Message:     "Any origin may call the API.",
			Remediation: "List the frontend origins in server.cors_origins.",
		}
	}
	return Check{
		ID:      "cors_origins",
		Status:  StatusPass,
		Message: fmt.Sprintf("API restricted to %d origin(s).", len(origins)),
		Details: map[string]any{"origins": origins},
	}
}

func (s *AuditService) checkUnverifiedBacklog(ctx context.Context) Check {
	retention := s.cfg.Auth.UnverifiedRetention
	if retention <= 0 {
		return Check{
			ID:      "unverified_backlog",
			Status:  StatusPass,
			Message: "Unverified account cleanup is disabled.",
		}
	}
	if s.db == nil {
		return Check{
			ID:          "unverified_backlog",
			Status:      StatusWarn,
			Message:     "No SQL database available; unable to count stale unverified accounts.",
			Remediation: "Run the audit against a SQL deployment or inspect the accounts collection directly.",
		}
	}

	// Twice the retention leaves room for the daily schedule.
	cutoff := s.now().UTC().Add(-2 * retention)
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("is_verified = ? AND created_at < ?", false, cutoff).
		Count(&count).Error; err != nil {
		return Check{
			ID:          "unverified_backlog",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Could not count unverified accounts: %v", err),
			Remediation: "Retry after resolving database errors.",
		}
	}

	if count > 0 {
		return Check{
			ID:          "unverified_backlog",
			Status:      StatusWarn,
			Message:     fmt.Sprintf("%d unverified account(s) are past twice the retention window.", count),
			Remediation: "Check that maintenance is enabled or run `taskpadctl cleanup`.",
			Details:     map[string]any{"count": count},
		}
	}
	return Check{
		ID:      "unverified_backlog",
		Status:  StatusPass,
		Message: "No stale unverified accounts.",
	}
}
