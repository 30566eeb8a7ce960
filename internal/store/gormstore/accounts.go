package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/taskpad/internal/models"
	"github.com/charlesng35/taskpad/internal/store"
)

// AccountStore persists accounts in the accounts table.
type AccountStore struct {
	db *gorm.DB
}

var _ store.AccountStore = (*AccountStore)(nil)

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, account *models.Account) error {
	if account == nil {
		return errors.New("gormstore: account is required")
	}
	account.Email = models.NormalizeEmail(account.Email)
	return translate(s.db.WithContext(ctx).Create(account).Error)
}

func (s *AccountStore) FindByID(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).Take(&account, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (s *AccountStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	if err := s.db.WithContext(ctx).Take(&account, "email = ?", models.NormalizeEmail(email)).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

// Update locks the row for the duration of fn so concurrent mutations of the
// same account apply one after another.
func (s *AccountStore) Update(ctx context.Context, id string, fn store.MutateFunc[models.Account]) (*models.Account, error) {
	var updated models.Account

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account models.Account
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&account, "id = ?", id).Error; err != nil {
			return err
		}

		originalID, originalEmail := account.ID, account.Email
		if err := fn(&account); err != nil {
			return err
		}
		account.ID, account.Email = originalID, originalEmail

		if err := tx.Save(&account).Error; err != nil {
			return err
		}
		updated = account
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return &updated, nil
}

func (s *AccountStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Delete(&models.Account{}, "id = ?", id)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *AccountStore) ClearExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	db := s.db.WithContext(ctx)

	verification := db.Model(&models.Account{}).
		Where("verification_expires_at IS NOT NULL AND verification_expires_at <= ?", now).
		Updates(map[string]any{"verification_code_hash": "", "verification_expires_at": nil})
	if verification.Error != nil {
		return 0, verification.Error
	}

	reset := db.Model(&models.Account{}).
		Where("reset_expires_at IS NOT NULL AND reset_expires_at <= ?", now).
		Updates(map[string]any{"reset_code_hash": "", "reset_expires_at": nil})
	if reset.Error != nil {
		return verification.RowsAffected, reset.Error
	}

	return verification.RowsAffected + reset.RowsAffected, nil
}

func (s *AccountStore) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("is_verified = ? AND created_at < ?", false, cutoff).
		Delete(&models.Account{})
	return result.RowsAffected, result.Error
}
