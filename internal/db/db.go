package db

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/balkashynov/punch/internal/models"
)

// Options tunes how the database is opened
type Options struct {
	// Verbose enables gorm's SQL logging
	Verbose bool
}

// Open sets up the database connection and runs migrations
func Open(dbPath string, opts Options) (*gorm.DB, error) {
	if dbPath == "" {
		return nil, errors.New("database path is empty")
	}

	// Ensure the directory exists
	if dbPath != ":memory:" && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	logMode := logger.Silent // Quiet by default
	if opts.Verbose {
		logMode = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(dbPath+pragmas(dbPath)), &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows a single writer; one connection keeps transactions serialized
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// DefaultPath returns the path to the SQLite database file below dataHome
func DefaultPath(dataHome string) string {
	return filepath.Join(dataHome, "punch", "punch.db")
}

func pragmas(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// runMigrations creates/updates the database schema
func runMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.WorkSession{},
		&models.WorkSubtrack{},
		&models.CalendarEvent{},
		&models.LeaveEntry{},
		&models.Holiday{},
		&models.DaySummary{},
		&models.AppSetting{},
	); err != nil {
		return err
	}

	// Constraints gorm tags cannot express: partial unique indexes
	stmts := []string{
		// At most one session may be active or paused
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_work_sessions_single_open
			ON work_sessions((status IN ('active', 'paused')))
			WHERE status IN ('active', 'paused')`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_calendar_events_external
			ON calendar_events(source, external_id, recurrence_id)
			WHERE external_id <> ''`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_calendar_events_fallback
			ON calendar_events(source, start_time, end_time, title)
			WHERE external_id = ''`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsUniqueViolation reports whether err comes from a UNIQUE constraint
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
