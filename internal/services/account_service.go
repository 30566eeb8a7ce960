package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/taskpad/internal/auth"
	"github.com/charlesng35/taskpad/internal/models"
	"github.com/charlesng35/taskpad/internal/store"
	apperrors "github.com/charlesng35/taskpad/pkg/errors"
	"github.com/charlesng35/taskpad/pkg/logger"
	"github.com/charlesng35/taskpad/pkg/metrics"
)

// dummyPassword is hashed once at start-up so logins for unknown emails pay
// the same bcrypt cost as real ones.
const dummyPassword = "taskpad-timing-equaliser-0"

// SignupInput carries the validated signup request.
type SignupInput struct {
	Email       string
	Password    string
	DisplayName string
}

// AuthResult is returned by operations that start a session.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *models.Account
}

// AccountServiceOption customises an AccountService.
type AccountServiceOption func(*AccountService)

// WithAccountClock injects the time source used for credential timestamps.
func WithAccountClock(clock func() time.Time) AccountServiceOption {
	return func(s *AccountService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithDispatcher sets the background runner used for emails sent after the response.
func WithDispatcher(d *Dispatcher) AccountServiceOption {
	return func(s *AccountService) {
		if d != nil {
			s.background = d
		}
	}
}

// AccountService implements the account credential lifecycle: signup, email
// verification, login, password reset and deletion.
type AccountService struct {
	accounts   store.AccountStore
	tasks      store.TaskStore
	hasher     *auth.PasswordHasher
	otp        *auth.OTPEngine
	tokens     *auth.JWTService
	notifier   AccountNotifier
	background *Dispatcher
	now        func() time.Time
	dummyHash  string
	log        *zap.Logger
}

// NewAccountService wires the lifecycle service. tasks may be nil when account
// deletion does not need to cascade.
func NewAccountService(
	accounts store.AccountStore,
	tasks store.TaskStore,
	hasher *auth.PasswordHasher,
	otp *auth.OTPEngine,
	tokens *auth.JWTService,
	notifier AccountNotifier,
	opts ...AccountServiceOption,
) (*AccountService, error) {
	switch {
	case accounts == nil:
		return nil, errors.New("account service: account store is required")
	case hasher == nil || otp == nil:
		return nil, errors.New("account service: hasher and otp engine are required")
	case tokens == nil:
		return nil, errors.New("account service: token issuer is required")
	case notifier == nil:
		return nil, errors.New("account service: notifier is required")
	}

	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}

	s := &AccountService{
		accounts:  accounts,
		tasks:     tasks,
		hasher:    hasher,
		otp:       otp,
		tokens:    tokens,
		notifier:  notifier,
		now:       time.Now,
		dummyHash: dummyHash,
		log:       logger.WithModule("accounts"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.background == nil {
		s.background = NewDispatcher(defaultBackgroundTimeout)
	}
	return s, nil
}

// Dispatcher exposes the background runner so shutdown can drain it.
func (s *AccountService) Dispatcher() *Dispatcher {
	return s.background
}

// Signup creates an unverified account and emails its verification code. If
// the email cannot be sent the account is removed again so the address can
// sign up later.
func (s *AccountService) Signup(ctx context.Context, input SignupInput) (*models.Account, error) {
	email := models.NormalizeEmail(input.Email)

	if _, err := s.accounts.FindByEmail(ctx, email); err == nil {
		return nil, ErrDuplicateAccount
	} else if !isNotFound(err) {
		return nil, internalError(err)
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, internalError(err)
	}

	code, challenge, err := s.otp.Issue()
	if err != nil {
		return nil, internalError(err)
	}

	name := strings.TrimSpace(input.DisplayName)
	if name == "" {
		name = models.DefaultDisplayName(email)
	}

	account := &models.Account{
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  name,
	}
	account.SetVerificationChallenge(&challenge)

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateAccount
		}
		return nil, internalError(err)
	}

	if err := s.notifier.SendVerificationCode(ctx, email, code); err != nil {
		metrics.EmailDeliveryFailures.WithLabelValues(EmailKindVerification).Inc()
		s.log.Warn("verification email failed, rolling back signup",
			zap.String("account_id", account.ID), zap.Error(err))

		if delErr := s.accounts.Delete(context.WithoutCancel(ctx), account.ID); delErr != nil && !isNotFound(delErr) {
			s.log.Error("signup rollback failed", zap.String("account_id", account.ID), zap.Error(delErr))
		}
		return nil, ErrEmailDeliveryFailed.WithInternal(err)
	}

	s.log.Info("account created", zap.String("account_id", account.ID))
	return account, nil
}

// VerifyEmail redeems the verification code, marks the account verified and
// starts a session. The welcome email is sent in the background.
func (s *AccountService) VerifyEmail(ctx context.Context, email, code string) (*AuthResult, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUnknownAccount
		}
		return nil, internalError(err)
	}

	verified, err := s.accounts.Update(ctx, account.ID, func(a *models.Account) error {
		if a.IsVerified {
			return ErrAlreadyVerified
		}
		if !s.otp.Verify(code, a.VerificationChallenge()) {
			return ErrInvalidOrExpiredCode
		}
		a.IsVerified = true
		a.SetVerificationChallenge(nil)
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUnknownAccount
		}
		return nil, internalError(err)
	}

	result, err := s.issueSession(verified)
	if err != nil {
		return nil, err
	}

	recipient, name := verified.Email, verified.DisplayName
	s.background.Go(ctx, "welcome_email", func(ctx context.Context) error {
		return s.countDelivery(EmailKindWelcome, s.notifier.SendWelcome(ctx, recipient, name))
	})

	s.log.Info("account verified", zap.String("account_id", verified.ID))
	return result, nil
}

// ResendVerification replaces the verification code of an unverified account
// and emails it. Unknown and already verified emails are accepted silently.
func (s *AccountService) ResendVerification(ctx context.Context, email string) error {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			s.burnIssue()
			return nil
		}
		return internalError(err)
	}
	if account.IsVerified {
		s.burnIssue()
		return nil
	}

	code, challenge, err := s.otp.Issue()
	if err != nil {
		return internalError(err)
	}

	_, err = s.accounts.Update(ctx, account.ID, func(a *models.Account) error {
		if a.IsVerified {
			return ErrAlreadyVerified
		}
		a.SetVerificationChallenge(&challenge)
		return nil
	})
	if errors.Is(err, ErrAlreadyVerified) || isNotFound(err) {
		return nil
	}
	if err != nil {
		return internalError(err)
	}

	recipient := account.Email
	s.background.Go(ctx, "verification_email", func(ctx context.Context) error {
		return s.countDelivery(EmailKindVerification, s.notifier.SendVerificationCode(ctx, recipient, code))
	})
	return nil
}

// Login checks credentials and starts a session for verified accounts.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			s.hasher.Verify(password, s.dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, internalError(err)
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !account.IsVerified {
		return nil, ErrNotVerified.WithDetails(map[string]string{"email": account.Email})
	}

	return s.issueSession(account)
}

// ForgotPassword stores a fresh reset code for a verified account and emails
// it in the background. The caller always sees success, and an unknown or
// unverified email costs the same hashing work as a verified one.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if !isNotFound(err) {
			s.log.Error("forgot password lookup failed", zap.Error(err))
		}
		s.burnIssue()
		return nil
	}
	// Unverified accounts finish signup through the verification code.
	if !account.IsVerified {
		s.burnIssue()
		return nil
	}

	code, challenge, err := s.otp.Issue()
	if err != nil {
		s.log.Error("reset code issue failed", zap.String("account_id", account.ID), zap.Error(err))
		return nil
	}

	if _, err := s.accounts.Update(ctx, account.ID, func(a *models.Account) error {
		a.SetResetChallenge(&challenge)
		return nil
	}); err != nil {
		s.log.Error("reset code store failed", zap.String("account_id", account.ID), zap.Error(err))
		return nil
	}

	recipient := account.Email
	s.background.Go(ctx, "password_reset_email", func(ctx context.Context) error {
		return s.countDelivery(EmailKindPasswordReset, s.notifier.SendPasswordResetCode(ctx, recipient, code))
	})
	return nil
}

// VerifyResetCode checks a reset code without consuming it.
func (s *AccountService) VerifyResetCode(ctx context.Context, email, code string) error {
	_, err := s.checkResetCode(ctx, email, code)
	return err
}

// ResetPassword redeems the reset code and replaces the password. Sessions
// issued before the reset stop being accepted.
func (s *AccountService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	account, err := s.checkResetCode(ctx, email, code)
	if err != nil {
		return err
	}
	redeemed := account.ResetCodeHash

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return internalError(err)
	}

	_, err = s.accounts.Update(ctx, account.ID, func(a *models.Account) error {
		now := s.now().UTC()
		// A concurrent reset or a newer forgot-password request replaced the code.
		if a.ResetCodeHash != redeemed || !a.ResetChallenge().ActiveAt(now) {
			return ErrInvalidOrExpiredCode
		}
		a.PasswordHash = passwordHash
		a.SetResetChallenge(nil)
		a.MarkCredentialsChanged(now)
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return ErrInvalidOrExpiredCode
		}
		return internalError(err)
	}

	s.log.Info("password reset", zap.String("account_id", account.ID))
	return nil
}

func (s *AccountService) checkResetCode(ctx context.Context, email, code string) (*models.Account, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			s.hasher.Verify(code, s.dummyHash)
			return nil, ErrInvalidOrExpiredCode
		}
		return nil, internalError(err)
	}
	if !s.otp.Verify(code, account.ResetChallenge()) {
		return nil, ErrInvalidOrExpiredCode
	}
	return account, nil
}

// DeleteAccount removes the account and every task it owns.
func (s *AccountService) DeleteAccount(ctx context.Context, accountID string) error {
	if _, err := s.accounts.FindByID(ctx, accountID); err != nil {
		if isNotFound(err) {
			return ErrUnknownAccount
		}
		return internalError(err)
	}

	if s.tasks != nil {
		if _, err := s.tasks.DeleteByOwner(ctx, accountID); err != nil {
			return internalError(err)
		}
	}

	if err := s.accounts.Delete(ctx, accountID); err != nil {
		if isNotFound(err) {
			return ErrUnknownAccount
		}
		return internalError(err)
	}

	s.log.Info("account deleted", zap.String("account_id", accountID))
	return nil
}

// DeleteAccountByEmail is the administrative variant of DeleteAccount.
func (s *AccountService) DeleteAccountByEmail(ctx context.Context, email string) error {
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return ErrUnknownAccount
		}
		return internalError(err)
	}
	return s.DeleteAccount(ctx, account.ID)
}

// GetAccount loads an account by id.
func (s *AccountService) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrUnknownAccount
		}
		return nil, internalError(err)
	}
	return account, nil
}

// Authenticate validates a session token and checks that the account still
// exists and has not changed credentials since the token was issued.
func (s *AccountService) Authenticate(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.tokens.ValidateAccessToken(token)
	if err != nil {
		return nil, tokenError(err)
	}

	if err := s.CheckSession(ctx, claims.AccountID, claims.CredentialsVersion); err != nil {
		return nil, err
	}
	return claims, nil
}

// CheckSession rejects sessions of deleted accounts and sessions issued under
// a password that has since been reset.
func (s *AccountService) CheckSession(ctx context.Context, accountID string, credentialsVersion int64) error {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		if isNotFound(err) {
			return apperrors.ErrUnauthorized
		}
		return internalError(err)
	}
	if account.CredentialsVersion() != credentialsVersion {
		return apperrors.ErrUnauthorized
	}
	return nil
}

func (s *AccountService) issueSession(account *models.Account) (*AuthResult, error) {
	token, err := s.tokens.GenerateAccessToken(auth.AccessTokenInput{
		AccountID:          account.ID,
		CredentialsVersion: account.CredentialsVersion(),
	})
	if err != nil {
		return nil, internalError(err)
	}
	return &AuthResult{
		Token:     token,
		ExpiresAt: s.now().UTC().Add(s.tokens.TTL()),
		Account:   account,
	}, nil
}

// burnIssue spends the same hashing work as a real code issue.
func (s *AccountService) burnIssue() {
	_, _, _ = s.otp.Issue()
}

func (s *AccountService) countDelivery(kind string, err error) error {
	if err != nil {
		metrics.EmailDeliveryFailures.WithLabelValues(kind).Inc()
	}
	return err
}
