package db

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/introslabs/intros/internal/config"
)

// NewDB initializes the database connection using the DSN from config.
// TranslateError is required: the engine relies on gorm.ErrDuplicatedKey
// to detect connection-uniqueness races.
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	database, err := gorm.Open(mysql.Open(cfg.DB.DSN), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := Migrate(database); err != nil {
		return nil, err
	}

	return database, nil
}

// Migrate keeps the schema in sync with the models. Also used by the
// test harness against in-memory SQLite.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&Account{},
		&Profile{},
		&Visit{},
		&Connection{},
		&DailyUsage{},
		&Message{},
		&NotificationMark{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
