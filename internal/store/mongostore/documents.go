package mongostore

import (
	"sort"
	"time"

	"github.com/charlesng35/taskpad/internal/models"
)

type challengeDocument struct {
	HashedCode string    `bson:"hashed_code"`
	ExpiresAt  time.Time `bson:"expires_at"`
}

type accountDocument struct {
	ID                   string             `bson:"_id"`
	Email                string             `bson:"email"`
	PasswordHash         string             `bson:"password_hash"`
	DisplayName          string             `bson:"display_name"`
	IsVerified           bool               `bson:"is_verified"`
	Verification         *challengeDocument `bson:"verification,omitempty"`
	Reset                *challengeDocument `bson:"reset,omitempty"`
	CredentialsChangedAt *time.Time         `bson:"credentials_changed_at,omitempty"`
	CreatedAt            time.Time          `bson:"created_at"`
	UpdatedAt            time.Time          `bson:"updated_at"`
	Version              int64              `bson:"version"`
}

type taskDocument struct {
	ID          string     `bson:"_id"`
	OwnerID     string     `bson:"owner_id"`
	Title       string     `bson:"title"`
	Description string     `bson:"description"`
	Status      string     `bson:"status"`
	Priority    string     `bson:"priority"`
	DueDate     *time.Time `bson:"due_date,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
	Version     int64      `bson:"version"`
}

func toChallengeDocument(c *models.Challenge) *challengeDocument {
	if c == nil {
		return nil
	}
	return &challengeDocument{HashedCode: c.HashedCode, ExpiresAt: c.ExpiresAt.UTC()}
}

func (d *challengeDocument) model() *models.Challenge {
	if d == nil {
		return nil
	}
	return &models.Challenge{HashedCode: d.HashedCode, ExpiresAt: d.ExpiresAt.UTC()}
}

func toAccountDocument(a *models.Account, version int64) accountDocument {
	return accountDocument{
		ID:                   a.ID,
		Email:                a.Email,
		PasswordHash:         a.PasswordHash,
		DisplayName:          a.DisplayName,
		IsVerified:           a.IsVerified,
		Verification:         toChallengeDocument(a.VerificationChallenge()),
		Reset:                toChallengeDocument(a.ResetChallenge()),
		CredentialsChangedAt: a.CredentialsChangedAt,
		CreatedAt:            a.CreatedAt.UTC(),
		UpdatedAt:            a.UpdatedAt.UTC(),
		Version:              version,
	}
}

func (d accountDocument) model() *models.Account {
	account := &models.Account{
		BaseModel: models.BaseModel{
			ID:        d.ID,
			CreatedAt: d.CreatedAt.UTC(),
			UpdatedAt: d.UpdatedAt.UTC(),
		},
		Email:                d.Email,
		PasswordHash:         d.PasswordHash,
		DisplayName:          d.DisplayName,
		IsVerified:           d.IsVerified,
		CredentialsChangedAt: utcPtr(d.CredentialsChangedAt),
	}
	account.SetVerificationChallenge(d.Verification.model())
	account.SetResetChallenge(d.Reset.model())
	return account
}

func toTaskDocument(t *models.Task, version int64) taskDocument {
	return taskDocument{
		ID:          t.ID,
		OwnerID:     t.OwnerID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		DueDate:     utcPtr(t.DueDate),
		CompletedAt: utcPtr(t.CompletedAt),
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
		Version:     version,
	}
}

func (d taskDocument) model() models.Task {
	return models.Task{
		BaseModel: models.BaseModel{
			ID:        d.ID,
			CreatedAt: d.CreatedAt.UTC(),
			UpdatedAt: d.UpdatedAt.UTC(),
		},
		OwnerID:     d.OwnerID,
		Title:       d.Title,
		Description: d.Description,
		Status:      models.TaskStatus(d.Status),
		Priority:    models.TaskPriority(d.Priority),
		DueDate:     utcPtr(d.DueDate),
		CompletedAt: utcPtr(d.CompletedAt),
	}
}

// sortTasks orders by due date with undated tasks last, then by creation time.
func sortTasks(tasks []models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		switch {
		case a.DueDate == nil && b.DueDate != nil:
			return false
		case a.DueDate != nil && b.DueDate == nil:
			return true
		case a.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
			return a.DueDate.Before(*b.DueDate)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
