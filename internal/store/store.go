// Package store defines the persistence contracts for accounts and tasks.
// Implementations live in gormstore (sqlite, postgres, mysql) and mongostore.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/charlesng35/taskpad/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist (or is not owned by the caller).
	ErrNotFound = errors.New("store: record not found")
	// ErrDuplicate is returned when a unique key, such as an account email, already exists.
	ErrDuplicate = errors.New("store: duplicate record")
	// ErrConflict is returned when a concurrent writer kept winning an optimistic update.
	ErrConflict = errors.New("store: concurrent modification")
)

// MutateFunc edits a record in place inside an atomic read-modify-write.
// Returning an error aborts the write and is passed back to the caller.
type MutateFunc[T any] func(*T) error

// AccountStore persists accounts keyed by id and normalised email.
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	// Update loads the account, applies fn and writes it back atomically with
	// respect to other Update calls on the same account.
	Update(ctx context.Context, id string, fn MutateFunc[models.Account]) (*models.Account, error)
	Delete(ctx context.Context, id string) error
	// ClearExpiredChallenges blanks challenge slots whose expiry is at or before now.
	ClearExpiredChallenges(ctx context.Context, now time.Time) (int64, error)
	// DeleteUnverifiedBefore removes unverified accounts created before cutoff.
	DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// TaskFilter narrows a task listing.
type TaskFilter struct {
	Status models.TaskStatus
}

// TaskStats are the per-owner aggregates behind the dashboard.
type TaskStats struct {
	Total      int64
	Pending    int64
	InProgress int64
	Completed  int64
	Overdue    int64
}

// TaskStore persists tasks. Every method is scoped by owner id.
type TaskStore interface {
	Create(ctx context.Context, task *models.Task) error
	// List returns tasks ordered by due date (undated last) then creation time.
	List(ctx context.Context, ownerID string, filter TaskFilter) ([]models.Task, error)
	Get(ctx context.Context, ownerID, id string) (*models.Task, error)
	Update(ctx context.Context, ownerID, id string, fn MutateFunc[models.Task]) (*models.Task, error)
	Delete(ctx context.Context, ownerID, id string) error
	DeleteByOwner(ctx context.Context, ownerID string) (int64, error)
	Stats(ctx context.Context, ownerID string, now time.Time) (TaskStats, error)
}

// Backend bundles the stores of one database together with its lifecycle.
type Backend interface {
	Accounts() AccountStore
	Tasks() TaskStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
