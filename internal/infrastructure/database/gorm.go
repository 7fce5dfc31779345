package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/you/chefkix/internal/infrastructure/repositories"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the state database. driver is "sqlite" (dsn is a file path)
// or "postgres".
func Open(driver, dsn string) (*gorm.DB, error) {
	config := &gorm.Config{
		Logger: logger.New(
			log.New(os.Stderr, "gorm: ", log.LstdFlags),
			logger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
	}

	switch driver {
	case "sqlite":
		if dir := filepath.Dir(dsn); dir != "." && dsn != ":memory:" {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("failed to create sqlite dir: %w", err)
			}
		}
		return gorm.Open(sqlite.Open(dsn), config)
	case "postgres":
		return gorm.Open(postgres.Open(dsn), config)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// AutoMigrate creates the client state table
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&repositories.DBStateEntry{}); err != nil {
		return fmt.Errorf("failed to migrate client_state table: %w", err)
	}
	return nil
}
