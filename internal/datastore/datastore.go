// Package datastore opens the alert history database and owns its schema.
package datastore

import (
	"strings"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/petpulse/petpulse-go/internal/conf"
	"github.com/petpulse/petpulse-go/internal/datastore/entities"
	"github.com/petpulse/petpulse-go/internal/errors"
	"github.com/petpulse/petpulse-go/internal/logger"
)

// Open connects to the configured backend. TranslateError is enabled so the
// repositories can match gorm.ErrDuplicatedKey across drivers.
func Open(settings *conf.DatabaseSettings, log logger.Logger) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	}

	var (
		db  *gorm.DB
		err error
	)
	switch settings.Type {
	case conf.DatabaseMySQL:
		db, err = gorm.Open(mysql.Open(settings.DSN), cfg)
	case conf.DatabaseSQLite:
		db, err = gorm.Open(sqlite.Open(sqliteDSN(settings.Path)), cfg)
	default:
		return nil, errors.Newf("unknown database type %q", settings.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err != nil {
		return nil, errors.Newf("opening %s database: %w", settings.Type, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}

	if settings.Type == conf.DatabaseSQLite {
		// sqlite writes lock the whole file; a single pooled connection
		// avoids spurious SQLITE_BUSY under the partitioned dispatcher.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Newf("accessing sql handle: %w", err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Build()
		}
		sqlDB.SetMaxOpenConns(1)
	}

	log.Info("database opened", logger.String("type", settings.Type))
	return db, nil
}

// sqliteDSN makes sure foreign keys are on for plain file paths while
// leaving fully-specified DSNs (tests use file::memory: variants) alone.
func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_foreign_keys=ON"
}

// Migrate creates or updates the schema for all entities.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&entities.Pet{},
		&entities.Alert{},
		&entities.QuickAction{},
		&entities.EmergencyContact{},
	); err != nil {
		return errors.Newf("migrating schema: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return nil
}
