package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/gtmhub/backend/internal/logging"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	errMissingDSN  = errors.New("database dsn is required")
	errMissingPath = errors.New("database path is required")
)

// Config selects and locates the database.
type Config struct {
	Driver string
	DSN    string
	Path   string
}

// Open connects using the configured driver.
func Open(cfg Config, logger *zap.Logger) (*gorm.DB, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case DriverPostgres, "":
		return OpenPostgres(cfg.DSN, logger)
	case DriverSQLite:
		return OpenSQLite(cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// OpenPostgres establishes a Postgres connection.
func OpenPostgres(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errMissingDSN
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logging.NewGormLogger(logger)})
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("database connected", zap.String("driver", DriverPostgres))
	}
	return db, nil
}

// OpenSQLite opens a SQLite file with a single connection so writers serialize.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errMissingPath
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logging.NewGormLogger(logger)})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if logger != nil {
		logger.Info("database connected", zap.String("driver", DriverSQLite), zap.String("path", path))
	}
	return db, nil
}
