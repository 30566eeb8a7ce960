package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/taskpad/internal/database"
	"github.com/charlesng35/taskpad/internal/store"
	"github.com/charlesng35/taskpad/internal/store/gormstore"
	"github.com/charlesng35/taskpad/internal/store/mongostore"
	"github.com/charlesng35/taskpad/pkg/logger"
)

// Backend is an opened account and task store. SQL is set for the gorm
// drivers so the SQL cache can share the connection pool.
type Backend struct {
	store.Backend
	SQL *gorm.DB
}

// OpenBackend connects to the configured database. With migrate set, SQL
// schemas are brought up to date; MongoDB indexes are always ensured.
func OpenBackend(ctx context.Context, cfg DatabaseConfig, migrate bool) (*Backend, error) {
	log := logger.WithModule("database")

	if cfg.IsMongo() {
		backend, err := mongostore.Connect(ctx, cfg.MongoStoreConfig())
		if err != nil {
			return nil, fmt.Errorf("connect mongodb: %w", err)
		}
		log.Info("database connected", zap.String("driver", "mongodb"))
		return &Backend{Backend: backend}, nil
	}

	sqlCfg := cfg.SQLConfig()
	db, err := database.Open(sqlCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if migrate {
		if err := database.Prepare(db); err != nil {
			_ = database.Close(db)
			return nil, err
		}
	}

	log.Info("database connected", zap.String("driver", sqlCfg.Driver))
	return &Backend{Backend: gormstore.New(db), SQL: db}, nil
}
