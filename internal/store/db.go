// Package store implements the local persistent key-value store that backs
// the routine list, per-routine content, selection pointers, and session
// markers. It is backed by GORM on top of the pure-Go SQLite driver so the
// daemon ships without cgo.
//
// The store is an explicitly constructed object with a defined lifecycle:
// opened at app start, cleared on logout, closed on shutdown. Nothing in
// this package is a module-level singleton, so tests swap in a throwaway
// database file.
package store

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Open opens (or creates) the SQLite database at path, applies PRAGMAs, and
// migrates the schema.
func Open(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool: the store has a single logical writer, keep it small.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(4)
		sqlDB.SetMaxIdleConns(4)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}
	return db, nil
}

// Entry is one key-value row. Values are opaque strings; callers serialize
// JSON before writing.
type Entry struct {
	Key       string    `gorm:"type:varchar(255);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Entry.
func (Entry) TableName() string { return "kv_entries" }
