package storage

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
)

func newTestSQLite(t *testing.T) *SQLiteStorage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStorage(path, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStorage(t *testing.T) {
	testStorage(t, func(t *testing.T) Storage { return newTestSQLite(t) })
}

func TestSQLiteStorage_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	logger := zaptest.NewLogger(t)

	s, err := NewSQLiteStorage(path, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.Close()

	// migrations are idempotent
	s, err = NewSQLiteStorage(path, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	s.Close()
}
