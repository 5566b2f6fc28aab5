// Package store is the DeviceStore reference implementation: a single-writer
// persistence boundary over GORM + glebarez/sqlite (pure-Go, no cgo), adapted
// from the teacher's internal/database package. Unlike the teacher, it holds
// no package-level *gorm.DB global — every caller owns its own *gorm.DB via
// Connect, per the "no process-wide singletons" design note.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite" // pure-Go SQLite driver, no CGO
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lacylights-go/dmxbridge/internal/logging"
)

// DBConfig holds connection options for Connect.
type DBConfig struct {
	URL         string
	MaxIdleConn int
	MaxOpenConn int
	Debug       bool
}

// Connect opens (and migrates) the SQLite-backed device store, using the
// same WAL/busy-timeout pragmas as the teacher's database.Connect.
func Connect(cfg DBConfig, log logging.Logger) (*gorm.DB, error) {
	dbPath := strings.TrimPrefix(cfg.URL, "file:")

	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	level := gormlogger.Silent
	if cfg.Debug {
		level = gormlogger.Info
	}
	gormLogger := gormlogger.New(
		gormWriter{log: log},
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		},
	)

	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConn)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Device{}, &MappingRecord{}, &PendingUpdate{}, &DeadLetter{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	log.Info("device store connected", logging.Fields{"path": dbPath})
	return db, nil
}

// Close closes the underlying connection.
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

// gormWriter adapts logging.Logger to GORM's io.Writer-based logger.New.
type gormWriter struct {
	log logging.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.log.Debug(fmt.Sprintf(format, args...), nil)
}
