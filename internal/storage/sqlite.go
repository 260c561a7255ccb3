package storage

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

type SQLiteStorage struct {
	sqlStorage
}

// NewSQLiteStorage opens (or creates) a SQLite database file and runs migrations.
func NewSQLiteStorage(path string, logger *zap.Logger) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	if err := initializeSchema(db, "migrations_sqlite.sql"); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite schema ready", zap.String("path", path))
	return &SQLiteStorage{sqlStorage{db: db}}, nil
}
