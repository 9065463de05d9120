package catalog

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mkessler-dev/pantrysync/internal/conf"
)

// SQLiteStore implements the catalog store for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the SQLite database connection
func (store *SQLiteStore) Open() error {
	path := store.Settings.Catalog.SQLite.Path
	if path == "" {
		return fmt.Errorf("catalog.sqlite.path is not configured")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: createGormLogger()})
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "SQLite", path)
}

// Close closes the SQLite database connection
func (store *SQLiteStore) Close() error {
	if store.DB == nil {
		return nil
	}
	sqlDB, err := store.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve generic DB object: %w", err)
	}
	return sqlDB.Close()
}
