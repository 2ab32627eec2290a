package store

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"incident-pipeline/internal/config"
)

// OpenInMemory opens a private, migrated SQLite database. Used by tests and
// by the dev server when no DSN is configured.
func OpenInMemory() (*gorm.DB, error) {
	db, err := Open(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}
