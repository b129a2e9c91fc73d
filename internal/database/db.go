package database

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"librarydesk/internal/config"
	"librarydesk/internal/models"
)

// Open connects to the configured database and applies the pool settings.
func Open(cfg config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DatabaseURL)
	case config.DriverSQLite:
		// Ensure directory exists so first-run succeeds.
		if dir := filepath.Dir(cfg.DatabaseURL); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		dialector = sqlite.Open(fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", cfg.DatabaseURL))
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel(cfg.DBLogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get generic DB: %w", err)
	}
	maxOpen := cfg.MaxOpenConns
	if cfg.DBDriver == config.DriverSQLite {
		// a single writer avoids SQLITE_BUSY between pooled connections
		maxOpen = 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

// Migrate brings the schema in line with the models and seeds the default
// settings row on first run.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	var existing models.Settings
	err := db.First(&existing, "id = ?", models.SettingsRowID).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("load settings: %w", err)
	}
	def := models.DefaultSettings()
	if err := db.Create(&def).Error; err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	log.Printf("[INFO] Migrate: seeded default settings (currency=%s)", def.Currency)
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func logLevel(s string) logger.LogLevel {
	switch s {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
