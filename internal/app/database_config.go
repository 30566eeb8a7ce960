package app

import (
	"strings"

	"github.com/charlesng35/taskpad/internal/database"
	"github.com/charlesng35/taskpad/internal/store/mongostore"
)

// IsMongo reports whether accounts and tasks live in MongoDB.
func (c DatabaseConfig) IsMongo() bool {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "mongo", "mongodb":
		return true
	default:
		return false
	}
}

// SQLConfig converts DatabaseConfig into database.Config, picking the host
// block that matches the driver.
func (c DatabaseConfig) SQLConfig() database.Config {
	cfg := database.Config{
		Driver:          strings.ToLower(strings.TrimSpace(c.Driver)),
		Path:            c.Path,
		DSN:             c.DSN,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
	}

	var host DBAuthConfig
	switch cfg.Driver {
	case "postgres", "postgresql":
		host = c.Postgres
	case "mysql":
		host = c.MySQL
	default:
		return cfg
	}

	cfg.Host = host.Host
	cfg.Port = host.Port
	cfg.Name = host.Database
	cfg.User = host.Username
	cfg.Password = host.Password
	return cfg
}

// MongoStoreConfig converts DatabaseConfig into mongostore.Config.
func (c DatabaseConfig) MongoStoreConfig() mongostore.Config {
	return mongostore.Config{
		URI:         strings.TrimSpace(c.MongoDB.URI),
		Database:    strings.TrimSpace(c.MongoDB.Database),
		Timeout:     c.MongoDB.Timeout,
		MaxPoolSize: c.MongoDB.MaxPoolSize,
	}
}
