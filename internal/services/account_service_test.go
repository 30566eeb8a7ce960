package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/charlesng35/taskpad/internal/auth"
	testutil "github.com/charlesng35/taskpad/internal/database/testutil"
	"github.com/charlesng35/taskpad/internal/models"
	"github.com/charlesng35/taskpad/internal/store"
	"github.com/charlesng35/taskpad/internal/store/gormstore"
	apperrors "github.com/charlesng35/taskpad/pkg/errors"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingNotifier struct {
	mu           sync.Mutex
	verification map[string]string
	reset        map[string]string
	welcomed     []string

	failVerification error
	failReset        error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		verification: map[string]string{},
		reset:        map[string]string{},
	}
}

func (n *recordingNotifier) SendVerificationCode(_ context.Context, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failVerification != nil {
		return n.failVerification
	}
	n.verification[email] = code
	return nil
}

func (n *recordingNotifier) SendWelcome(_ context.Context, email, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcomed = append(n.welcomed, email)
	return nil
}

func (n *recordingNotifier) SendPasswordResetCode(_ context.Context, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failReset != nil {
		return n.failReset
	}
	n.reset[email] = code
	return nil
}

func (n *recordingNotifier) verificationCode(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.verification[email]
}

func (n *recordingNotifier) resetCode(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reset[email]
}

func (n *recordingNotifier) welcomes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.welcomed...)
}

type accountHarness struct {
	svc      *AccountService
	backend  *gormstore.Backend
	notifier *recordingNotifier
	clock    *testClock
}

func newAccountHarness(t *testing.T) *accountHarness {
	t.Helper()

	backend := gormstore.New(testutil.MustOpenTestDB(t, testutil.WithAutoMigrate()))
	clock := newTestClock()
	notifier := newRecordingNotifier()
	hasher := auth.NewPasswordHasher(bcrypt.MinCost)

	tokens, err := auth.NewJWTService(auth.JWTConfig{
		Secret: "test-secret",
		Issuer: "taskpad-test",
		Clock:  clock.Now,
	})
	require.NoError(t, err)

	svc, err := NewAccountService(
		backend.Accounts(),
		backend.Tasks(),
		hasher,
		auth.NewOTPEngine(hasher, clock.Now),
		tokens,
		notifier,
		WithAccountClock(clock.Now),
		WithDispatcher(NewDispatcher(time.Second)),
	)
	require.NoError(t, err)

	return &accountHarness{svc: svc, backend: backend, notifier: notifier, clock: clock}
}

func (h *accountHarness) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.svc.Dispatcher().Wait(ctx))
}

// signupVerified creates and verifies an account, returning its session.
func (h *accountHarness) signupVerified(t *testing.T, email, password string) *AuthResult {
	t.Helper()
	ctx := context.Background()

	_, err := h.svc.Signup(ctx, SignupInput{Email: email, Password: password})
	require.NoError(t, err)

	result, err := h.svc.VerifyEmail(ctx, email, h.notifier.verificationCode(models.NormalizeEmail(email)))
	require.NoError(t, err)
	return result
}

func TestSignupCreatesUnverifiedAccount(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()

	account, err := h.svc.Signup(ctx, SignupInput{Email: "  Alice@Example.com ", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", account.Email)
	require.Equal(t, "alice", account.DisplayName)
	require.False(t, account.IsVerified)

	code := h.notifier.verificationCode("alice@example.com")
	require.Regexp(t, `^[1-9][0-9]{3}$`, code)

	stored, err := h.backend.Accounts().FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotEqual(t, "secret1", stored.PasswordHash)
	require.NotContains(t, stored.VerificationCodeHash, code)
	require.NotNil(t, stored.VerificationChallenge())
	require.True(t, h.clock.Now().Add(auth.OTPTTL).Equal(stored.VerificationChallenge().ExpiresAt))
	require.Nil(t, stored.ResetChallenge())
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()

	_, err := h.svc.Signup(ctx, SignupInput{Email: "bob@example.com", Password: "secret1", DisplayName: "Bob"})
	require.NoError(t, err)

	_, err = h.svc.Signup(ctx, SignupInput{Email: "BOB@example.com", Password: "other22"})
	require.ErrorIs(t, err, ErrDuplicateAccount)
}

func TestSignupRollsBackWhenEmailFails(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()
	h.notifier.failVerification = errors.New("smtp down")

	_, err := h.svc.Signup(ctx, SignupInput{Email: "carol@example.com", Password: "secret1"})
	require.ErrorIs(t, err, ErrEmailDeliveryFailed)

	_, err = h.backend.Accounts().FindByEmail(ctx, "carol@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)

	h.notifier.failVerification = nil
	_, err = h.svc.Signup(ctx, SignupInput{Email: "carol@example.com", Password: "secret1"})
	require.NoError(t, err)
}

func TestVerifyEmailFlow(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()

	_, err := h.svc.Signup(ctx, SignupInput{Email: "dave@example.com", Password: "secret1", DisplayName: "Dave"})
	require.NoError(t, err)
	code := h.notifier.verificationCode("dave@example.com")

	wrong := "1000"
	if code == wrong {
		wrong = "1001"
	}
	_, err = h.svc.VerifyEmail(ctx, "dave@example.com", wrong)
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)

	result, err := h.svc.VerifyEmail(ctx, "dave@example.com", code)
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	require.True(t, result.Account.IsVerified)
	require.Equal(t, "Dave", result.Account.DisplayName)
	require.True(t, h.clock.Now().Add(auth.DefaultAccessTokenTTL).Equal(result.ExpiresAt))

	stored, err := h.backend.Accounts().FindByID(ctx, result.Account.ID)
	require.NoError(t, err)
	require.True(t, stored.IsVerified)
	require.Nil(t, stored.VerificationChallenge())

	_, err = h.svc.VerifyEmail(ctx, "dave@example.com", code)
	require.ErrorIs(t, err, ErrAlreadyVerified)

	h.drain(t)
	require.Equal(t, []string{"dave@example.com"}, h.notifier.welcomes())
}

func TestVerifyEmailRejectsExpiredCode(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()

	_, err := h.svc.Signup(ctx, SignupInput{Email: "erin@example.com", Password: "secret1"})
	require.NoError(t, err)
	code := h.notifier.verificationCode("erin@example.com")

	h.clock.Advance(auth.OTPTTL)
	_, err = h.svc.VerifyEmail(ctx, "erin@example.com", code)
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestVerifyEmailExpiryBoundary(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()

	_, err := h.svc.Signup(ctx, SignupInput{Email: "edie@example.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = h.svc.Signup(ctx, SignupInput{Email: "ezra@example.com", Password: "secret1"})
	require.NoError(t, err)
	h.drain(t)

	h.clock.Advance(auth.OTPTTL - time.Millisecond)
	session, err := h.svc.VerifyEmail(ctx, "edie@example.com", h.notifier.verificationCode("edie@example.com"))
	require.NoError(t, err)
	require.True(t, session.Account.IsVerified)

	h.clock.Advance(2 * time.Millisecond)
	_, err = h.svc.VerifyEmail(ctx, "ezra@example.com", h.notifier.verificationCode("ezra@example.com"))
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestVerifyEmailUnknownAccount(t *testing.T) {
	h := newAccountHarness(t)

	_, err := h.svc.VerifyEmail(context.Background(), "nobody@example.com", "1234")
	require.ErrorIs(t, err, ErrUnknownAccount)
}

func TestResendVerificationReplacesCode(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()

	_, err := h.svc.Signup(ctx, SignupInput{Email: "frank@example.com", Password: "secret1"})
	require.NoError(t, err)
	first := h.notifier.verificationCode("frank@example.com")

	h.clock.Advance(9 * time.Minute)
	require.NoError(t, h.svc.ResendVerification(ctx, "frank@example.com"))
	h.drain(t)
	second := h.notifier.verificationCode("frank@example.com")

	stored, err := h.backend.Accounts().FindByEmail(ctx, "frank@example.com")
	require.NoError(t, err)
	require.True(t, h.clock.Now().Add(auth.OTPTTL).Equal(stored.VerificationChallenge().ExpiresAt))

	if first != second {
		_, err = h.svc.VerifyEmail(ctx, "frank@example.com", first)
		require.ErrorIs(t, err, ErrInvalidOrExpiredCode)
	}

	h.clock.Advance(5 * time.Minute)
	_, err = h.svc.VerifyEmail(ctx, "frank@example.com", second)
	require.NoError(t, err)
}

func TestResendVerificationIsSilentForUnknownAndVerified(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()
	h.signupVerified(t, "gina@example.com", "secret1")

	require.NoError(t, h.svc.ResendVerification(ctx, "nobody@example.com"))
	require.NoError(t, h.svc.ResendVerification(ctx, "gina@example.com"))
	h.drain(t)

	stored, err := h.backend.Accounts().FindByEmail(ctx, "gina@example.com")
	require.NoError(t, err)
	require.Nil(t, stored.VerificationChallenge())
}

func TestLoginRequiresVerifiedAccount(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()

	_, err := h.svc.Signup(ctx, SignupInput{Email: "hank@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = h.svc.Login(ctx, "hank@example.com", "secret1")
	require.ErrorIs(t, err, ErrNotVerified)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, map[string]string{"email": "hank@example.com"}, appErr.Details)

	_, err = h.svc.VerifyEmail(ctx, "hank@example.com", h.notifier.verificationCode("hank@example.com"))
	require.NoError(t, err)

	result, err := h.svc.Login(ctx, "HANK@example.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, "hank@example.com", result.Account.Email)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()
	h.signupVerified(t, "ivy@example.com", "secret1")

	_, unknownErr := h.svc.Login(ctx, "nobody@example.com", "secret1")
	_, wrongErr := h.svc.Login(ctx, "ivy@example.com", "wrong99")

	require.ErrorIs(t, unknownErr, ErrInvalidCredentials)
	require.ErrorIs(t, wrongErr, ErrInvalidCredentials)
	require.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestForgotPasswordUnknownEmailIsSilent(t *testing.T) {
	h := newAccountHarness(t)

	require.NoError(t, h.svc.ForgotPassword(context.Background(), "nobody@example.com"))
	h.drain(t)
	require.Empty(t, h.notifier.resetCode("nobody@example.com"))
}

func TestForgotPasswordIgnoresUnverifiedAccount(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()
	_, err := h.svc.Signup(ctx, SignupInput{Email: "una@example.com", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, h.svc.ForgotPassword(ctx, "una@example.com"))
	h.drain(t)
	require.Empty(t, h.notifier.resetCode("una@example.com"))

	stored, err := h.backend.Accounts().FindByEmail(ctx, "una@example.com")
	require.NoError(t, err)
	require.False(t, stored.IsVerified)
	require.Nil(t, stored.ResetChallenge())
	require.NotNil(t, stored.VerificationChallenge())
	require.ErrorIs(t, h.svc.ResetPassword(ctx, "una@example.com", "0000", "newpass9"), ErrInvalidOrExpiredCode)
}

func TestForgotPasswordSwallowsDeliveryFailure(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()
	h.signupVerified(t, "jack@example.com", "secret1")
	h.notifier.failReset = errors.New("smtp down")

	require.NoError(t, h.svc.ForgotPassword(ctx, "jack@example.com"))
	h.drain(t)

	stored, err := h.backend.Accounts().FindByEmail(ctx, "jack@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored.ResetChallenge())
}

func TestPasswordResetFlow(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()
	h.signupVerified(t, "kate@example.com", "secret1")

	require.NoError(t, h.svc.ForgotPassword(ctx, "kate@example.com"))
	h.drain(t)
	code := h.notifier.resetCode("kate@example.com")
	require.NotEmpty(t, code)

	// Checking the code does not consume it.
	require.NoError(t, h.svc.VerifyResetCode(ctx, "kate@example.com", code))
	require.NoError(t, h.svc.VerifyResetCode(ctx, "kate@example.com", code))

	require.NoError(t, h.svc.ResetPassword(ctx, "kate@example.com", code, "newpass9"))

	_, err := h.svc.Login(ctx, "kate@example.com", "secret1")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	result, err := h.svc.Login(ctx, "kate@example.com", "newpass9")
	require.NoError(t, err)
	require.True(t, result.Account.IsVerified)
	require.Nil(t, result.Account.ResetChallenge())

	err = h.svc.ResetPassword(ctx, "kate@example.com", code, "another1")
	require.ErrorIs(t, err, ErrInvalidOrExpiredCode)
	require.ErrorIs(t, h.svc.VerifyResetCode(ctx, "kate@example.com", code), ErrInvalidOrExpiredCode)
}

func TestForgotPasswordSupersedesPreviousCode(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()
	h.signupVerified(t, "liam@example.com", "secret1")

	require.NoError(t, h.svc.ForgotPassword(ctx, "liam@example.com"))
	h.drain(t)
	first := h.notifier.resetCode("liam@example.com")

	require.NoError(t, h.svc.ForgotPassword(ctx, "liam@example.com"))
	h.drain(t)
	second := h.notifier.resetCode("liam@example.com")

	if first != second {
		require.ErrorIs(t, h.svc.ResetPassword(ctx, "liam@example.com", first, "newpass9"), ErrInvalidOrExpiredCode)
	}
	require.NoError(t, h.svc.ResetPassword(ctx, "liam@example.com", second, "newpass9"))
}

func TestResetPasswordRejectsExpiredAndUnknown(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()
	h.signupVerified(t, "mia@example.com", "secret1")

	require.ErrorIs(t, h.svc.ResetPassword(ctx, "nobody@example.com", "1234", "newpass9"), ErrInvalidOrExpiredCode)
	require.ErrorIs(t, h.svc.ResetPassword(ctx, "mia@example.com", "1234", "newpass9"), ErrInvalidOrExpiredCode)

	require.NoError(t, h.svc.ForgotPassword(ctx, "mia@example.com"))
	h.drain(t)
	code := h.notifier.resetCode("mia@example.com")

	h.clock.Advance(auth.OTPTTL + time.Millisecond)
	require.ErrorIs(t, h.svc.ResetPassword(ctx, "mia@example.com", code, "newpass9"), ErrInvalidOrExpiredCode)
}

func TestResetPasswordExpiryBoundary(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()
	h.signupVerified(t, "rita@example.com", "secret1")
	h.signupVerified(t, "rory@example.com", "secret1")

	require.NoError(t, h.svc.ForgotPassword(ctx, "rita@example.com"))
	require.NoError(t, h.svc.ForgotPassword(ctx, "rory@example.com"))
	h.drain(t)

	h.clock.Advance(auth.OTPTTL - time.Millisecond)
	require.NoError(t, h.svc.VerifyResetCode(ctx, "rita@example.com", h.notifier.resetCode("rita@example.com")))
	require.NoError(t, h.svc.ResetPassword(ctx, "rita@example.com", h.notifier.resetCode("rita@example.com"), "newpass9"))

	h.clock.Advance(2 * time.Millisecond)
	require.ErrorIs(t, h.svc.ResetPassword(ctx, "rory@example.com", h.notifier.resetCode("rory@example.com"), "newpass9"), ErrInvalidOrExpiredCode)
}

func TestResetPasswordRevokesOlderSessions(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()
	session := h.signupVerified(t, "noah@example.com", "secret1")

	claims, err := h.svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	require.Equal(t, session.Account.ID, claims.AccountID)

	h.clock.Advance(time.Minute)
	require.NoError(t, h.svc.ForgotPassword(ctx, "noah@example.com"))
	h.drain(t)
	require.NoError(t, h.svc.ResetPassword(ctx, "noah@example.com", h.notifier.resetCode("noah@example.com"), "newpass9"))

	_, err = h.svc.Authenticate(ctx, session.Token)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	fresh, err := h.svc.Login(ctx, "noah@example.com", "newpass9")
	require.NoError(t, err)
	_, err = h.svc.Authenticate(ctx, fresh.Token)
	require.NoError(t, err)
}

func TestResetPasswordRevokesSessionsIssuedInSameSecond(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()
	session := h.signupVerified(t, "nora@example.com", "secret1")

	// No clock movement: the old token and the reset share a timestamp.
	require.NoError(t, h.svc.ForgotPassword(ctx, "nora@example.com"))
	h.drain(t)
	require.NoError(t, h.svc.ResetPassword(ctx, "nora@example.com", h.notifier.resetCode("nora@example.com"), "newpass9"))

	_, err := h.svc.Authenticate(ctx, session.Token)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	fresh, err := h.svc.Login(ctx, "nora@example.com", "newpass9")
	require.NoError(t, err)
	_, err = h.svc.Authenticate(ctx, fresh.Token)
	require.NoError(t, err)

	// A second reset in the same instant revokes the session issued between them.
	require.NoError(t, h.svc.ForgotPassword(ctx, "nora@example.com"))
	h.drain(t)
	require.NoError(t, h.svc.ResetPassword(ctx, "nora@example.com", h.notifier.resetCode("nora@example.com"), "another7"))
	_, err = h.svc.Authenticate(ctx, fresh.Token)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestAuthenticateMapsTokenFailures(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()
	session := h.signupVerified(t, "olga@example.com", "secret1")

	_, err := h.svc.Authenticate(ctx, "not-a-token")
	require.ErrorIs(t, err, apperrors.ErrTokenInvalid)

	h.clock.Advance(auth.DefaultAccessTokenTTL + time.Second)
	_, err = h.svc.Authenticate(ctx, session.Token)
	require.ErrorIs(t, err, apperrors.ErrTokenExpired)
}

func TestDeleteAccountRemovesTasks(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()
	session := h.signupVerified(t, "pete@example.com", "secret1")
	accountID := session.Account.ID

	require.NoError(t, h.backend.Tasks().Create(ctx, &models.Task{OwnerID: accountID, Title: "one"}))
	require.NoError(t, h.backend.Tasks().Create(ctx, &models.Task{OwnerID: accountID, Title: "two"}))

	require.NoError(t, h.svc.DeleteAccount(ctx, accountID))

	tasks, err := h.backend.Tasks().List(ctx, accountID, store.TaskFilter{})
	require.NoError(t, err)
	require.Empty(t, tasks)

	_, err = h.svc.GetAccount(ctx, accountID)
	require.ErrorIs(t, err, ErrUnknownAccount)
	require.ErrorIs(t, h.svc.DeleteAccount(ctx, accountID), ErrUnknownAccount)

	_, err = h.svc.Authenticate(ctx, session.Token)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = h.svc.Signup(ctx, SignupInput{Email: "pete@example.com", Password: "secret1"})
	require.NoError(t, err)
}

func TestDeleteAccountByEmail(t *testing.T) {
	h := newAccountHarness(t)
	ctx := context.Background()
	h.signupVerified(t, "quinn@example.com", "secret1")

	require.NoError(t, h.svc.DeleteAccountByEmail(ctx, "Quinn@Example.com"))
	require.ErrorIs(t, h.svc.DeleteAccountByEmail(ctx, "quinn@example.com"), ErrUnknownAccount)
}

func TestNewAccountServiceRequiresCollaborators(t *testing.T) {
	_, err := NewAccountService(nil, nil, nil, nil, nil, nil)
	require.Error(t, err)
}
