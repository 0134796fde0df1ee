package platform

import (
	"fmt"

	"capstone/config"

	"github.com/pkg/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB opens the relational database selected by cfg.StorageBackend.
func OpenDB(cfg *config.Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	switch cfg.StorageBackend {
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(cfg.SQLitePath), gormConfig)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open sqlite database %s", cfg.SQLitePath)
		}
		// SQLite needs this per connection for ON DELETE CASCADE.
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, errors.Wrap(err, "failed to enable foreign keys")
		}
		return db, nil
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.SQL.User, cfg.SQL.Password, cfg.SQL.Host, cfg.SQL.Port, cfg.SQL.DBName)
		db, err := gorm.Open(mysql.Open(dsn), gormConfig)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to database")
		}
		return db, nil
	default:
		return nil, errors.Errorf("storage backend %q is not relational", cfg.StorageBackend)
	}
}
