package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/pondwatch/pondwatch-go/internal/conf"
)

// MySQLStore implements Interface for MySQL.
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the MySQL database connection and migrates the schema.
func (store *MySQLStore) Open() error {
	cfg := store.Settings.Datastore.MySQL
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: newGormLogger(store.Settings.Main.Debug),
	})
	if err != nil {
		return dbError(err, "open mysql")
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Main.Debug, "MySQL",
		fmt.Sprintf("%s:%s/%s", cfg.Host, cfg.Port, cfg.Database))
}

// Close releases the underlying connection pool.
func (store *MySQLStore) Close() error {
	if store.DB == nil {
		return nil
	}
	sqlDB, err := store.DB.DB()
	if err != nil {
		return dbError(err, "close mysql")
	}
	return sqlDB.Close()
}
