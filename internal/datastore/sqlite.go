package datastore

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pondwatch/pondwatch-go/internal/conf"
	"github.com/pondwatch/pondwatch-go/internal/errors"
)

// SQLiteStore implements Interface for SQLite.
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the SQLite database connection and migrates the schema.
func (store *SQLiteStore) Open() error {
	path := store.Settings.Datastore.SQLite.Path
	if path == "" {
		return errors.Newf("sqlite path is empty").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return dbError(err, "create sqlite directory")
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: newGormLogger(store.Settings.Main.Debug),
	})
	if err != nil {
		return dbError(err, "open sqlite")
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Main.Debug, "SQLite", path)
}

// Close releases the underlying connection.
func (store *SQLiteStore) Close() error {
	if store.DB == nil {
		return nil
	}
	sqlDB, err := store.DB.DB()
	if err != nil {
		return dbError(err, "close sqlite")
	}
	return sqlDB.Close()
}
