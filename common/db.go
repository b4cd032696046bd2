package common

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ConnectDb opens the main database. driver is "sqlite" (dsn is a file path)
// or "mysql" (dsn is a go-sql-driver DSN).
func ConnectDb(driver, dsn string, log *zap.Logger) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn not set")
	}

	var dialector gorm.Dialector
	switch driver {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}
	log.Info("database opened", zap.String("driver", driver))
	return db, nil
}

// ConnectAnalyticsDb opens the separate analytics database. Analytics is
// disabled (nil) when no path is configured or the file cannot be opened.
func ConnectAnalyticsDb(path string, log *zap.Logger) *gorm.DB {
	if path == "" {
		log.Info("analytics_db not set - analytics will be disabled")
		return nil
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Warn("error opening analytics sqlite db", zap.String("path", path), zap.Error(err))
		return nil
	}

	log.Info("opened analytics sqlite db", zap.String("path", path))
	return db
}
