package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/taskpad/internal/models"
)

// AutoMigrate creates or updates the schema for every persistent model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Account{},
		&models.Task{},
		&models.CacheEntry{},
	)
}
