package gormstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	testutil "github.com/charlesng35/taskpad/internal/database/testutil"
	"github.com/charlesng35/taskpad/internal/models"
	"github.com/charlesng35/taskpad/internal/store"
)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	return New(testutil.MustOpenTestDB(t, testutil.WithAutoMigrate()))
}

func TestAccountCreateAndFind(t *testing.T) {
	ctx := context.Background()
	accounts := newBackend(t).Accounts()

	account := &models.Account{Email: " Alice@Example.com ", PasswordHash: "hash", DisplayName: "alice"}
	require.NoError(t, accounts.Create(ctx, account))
	require.NotEmpty(t, account.ID)
	require.Equal(t, "alice@example.com", account.Email)

	byEmail, err := accounts.FindByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	require.Equal(t, account.ID, byEmail.ID)
	require.False(t, byEmail.IsVerified)

	byID, err := accounts.FindByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", byID.Email)

	_, err = accounts.FindByEmail(ctx, "missing@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAccountCreateDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	accounts := newBackend(t).Accounts()

	require.NoError(t, accounts.Create(ctx, &models.Account{Email: "bob@example.com", PasswordHash: "hash"}))
	err := accounts.Create(ctx, &models.Account{Email: "BOB@example.com", PasswordHash: "hash"})
	require.ErrorIs(t, err, store.ErrDuplicate)
}

func TestAccountUpdateKeepsChallengesIndependent(t *testing.T) {
	ctx := context.Background()
	accounts := newBackend(t).Accounts()
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	account := &models.Account{Email: "carol@example.com", PasswordHash: "hash"}
	account.SetVerificationChallenge(&models.Challenge{HashedCode: "verify", ExpiresAt: expires})
	require.NoError(t, accounts.Create(ctx, account))

	updated, err := accounts.Update(ctx, account.ID, func(a *models.Account) error {
		a.SetResetChallenge(&models.Challenge{HashedCode: "reset", ExpiresAt: expires})
		a.Email = "hijack@example.com"
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "carol@example.com", updated.Email)

	stored, err := accounts.FindByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, "verify", stored.VerificationChallenge().HashedCode)
	require.Equal(t, "reset", stored.ResetChallenge().HashedCode)
	require.True(t, stored.ResetChallenge().ExpiresAt.Equal(expires))
}

func TestAccountUpdateAbortsOnError(t *testing.T) {
	ctx := context.Background()
	accounts := newBackend(t).Accounts()

	account := &models.Account{Email: "dan@example.com", PasswordHash: "hash"}
	require.NoError(t, accounts.Create(ctx, account))

	boom := errors.New("boom")
	_, err := accounts.Update(ctx, account.ID, func(a *models.Account) error {
		a.IsVerified = true
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := accounts.FindByID(ctx, account.ID)
	require.NoError(t, err)
	require.False(t, stored.IsVerified)

	_, err = accounts.Update(ctx, "missing", func(*models.Account) error { return nil })
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAccountUpdateSerialisesConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	accounts := newBackend(t).Accounts()

	account := &models.Account{Email: "eve@example.com", PasswordHash: "hash"}
	require.NoError(t, accounts.Create(ctx, account))

	const writers = 8
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := accounts.Update(ctx, account.ID, func(a *models.Account) error {
				a.DisplayName += "x"
				return nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := accounts.FindByID(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, stored.DisplayName, writers)
}

func TestAccountDelete(t *testing.T) {
	ctx := context.Background()
	accounts := newBackend(t).Accounts()

	account := &models.Account{Email: "frank@example.com", PasswordHash: "hash"}
	require.NoError(t, accounts.Create(ctx, account))

	require.NoError(t, accounts.Delete(ctx, account.ID))
	require.ErrorIs(t, accounts.Delete(ctx, account.ID), store.ErrNotFound)

	// The email is free again after deletion.
	require.NoError(t, accounts.Create(ctx, &models.Account{Email: "frank@example.com", PasswordHash: "hash"}))
}

func TestClearExpiredChallenges(t *testing.T) {
	ctx := context.Background()
	accounts := newBackend(t).Accounts()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	expired := &models.Account{Email: "expired@example.com", PasswordHash: "hash"}
	expired.SetVerificationChallenge(&models.Challenge{HashedCode: "v", ExpiresAt: now.Add(-time.Minute)})
	expired.SetResetChallenge(&models.Challenge{HashedCode: "r", ExpiresAt: now.Add(time.Minute)})
	require.NoError(t, accounts.Create(ctx, expired))

	fresh := &models.Account{Email: "fresh@example.com", PasswordHash: "hash"}
	fresh.SetResetChallenge(&models.Challenge{HashedCode: "r", ExpiresAt: now})
	require.NoError(t, accounts.Create(ctx, fresh))

	cleared, err := accounts.ClearExpiredChallenges(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(2), cleared)

	stored, err := accounts.FindByID(ctx, expired.ID)
	require.NoError(t, err)
	require.Nil(t, stored.VerificationChallenge())
	require.NotNil(t, stored.ResetChallenge())

	stored, err = accounts.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	require.Nil(t, stored.ResetChallenge())
}

func TestDeleteUnverifiedBefore(t *testing.T) {
	ctx := context.Background()
	backend := newBackend(t)
	accounts := backend.Accounts()
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	stale := &models.Account{Email: "stale@example.com", PasswordHash: "hash"}
	stale.CreatedAt = old
	require.NoError(t, accounts.Create(ctx, stale))

	verified := &models.Account{Email: "verified@example.com", PasswordHash: "hash", IsVerified: true}
	verified.CreatedAt = old
	require.NoError(t, accounts.Create(ctx, verified))

	recent := &models.Account{Email: "recent@example.com", PasswordHash: "hash"}
	require.NoError(t, accounts.Create(ctx, recent))

	removed, err := accounts.DeleteUnverifiedBefore(ctx, old.Add(24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	_, err = accounts.FindByID(ctx, stale.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = accounts.FindByID(ctx, verified.ID)
	require.NoError(t, err)
	_, err = accounts.FindByID(ctx, recent.ID)
	require.NoError(t, err)
}

func TestBackendPing(t *testing.T) {
	backend := newBackend(t)
	require.NoError(t, backend.Ping(context.Background()))
	require.NotNil(t, backend.DB())
}
