// Package gormstore implements the store contracts on gorm for sqlite,
// postgres and mysql.
package gormstore

import (
	"context"

	"gorm.io/gorm"

	"github.com/charlesng35/taskpad/internal/database"
	"github.com/charlesng35/taskpad/internal/store"
)

// Backend serves accounts and tasks from one SQL database.
type Backend struct {
	db       *gorm.DB
	accounts *AccountStore
	tasks    *TaskStore
}

var _ store.Backend = (*Backend)(nil)

// New wraps an opened and migrated gorm handle.
func New(db *gorm.DB) *Backend {
	return &Backend{
		db:       db,
		accounts: NewAccountStore(db),
		tasks:    NewTaskStore(db),
	}
}

func (b *Backend) Accounts() store.AccountStore { return b.accounts }

func (b *Backend) Tasks() store.TaskStore { return b.tasks }

// DB exposes the handle for collaborators that share the database, such as the SQL cache.
func (b *Backend) DB() *gorm.DB { return b.db }

func (b *Backend) Ping(ctx context.Context) error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (b *Backend) Close(context.Context) error {
	return database.Close(b.db)
}
