package catalog

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/mkessler-dev/pantrysync/internal/conf"
)

// MySQLStore implements the catalog store for MySQL
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the MySQL database connection
func (store *MySQLStore) Open() error {
	cfg := store.Settings.Catalog.MySQL
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: createGormLogger()})
	if err != nil {
		return fmt.Errorf("failed to open MySQL database: %w", err)
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "MySQL", dsn)
}

// Close closes the MySQL database connection
func (store *MySQLStore) Close() error {
	if store.DB == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	sqlDB, err := store.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve generic DB object: %w", err)
	}
	return sqlDB.Close()
}
