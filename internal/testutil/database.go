package testutil

import (
	"testing"

	"lcb-go/internal/database"
	"lcb-go/internal/lcb"
)

// NewTestDatabase creates a new in-memory journal database with all migrations applied.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) lcb.Database {
	t.Helper()

	db, err := database.NewMigratedSQLiteDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
