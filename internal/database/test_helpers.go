package database

import (
	"path/filepath"
	"testing"
)

// setupTestDB opens a throwaway sqlite catalog under t.TempDir.
func setupTestDB(t *testing.T) (*DB, func()) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "catalog.db")
	db, err := NewDB(path)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	cleanup := func() {
		db.Close()
	}
	return db, cleanup
}
