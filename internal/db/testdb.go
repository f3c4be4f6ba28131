package db

import (
	"database/sql"
	"testing"
)

// NewTestDB returns a private in-memory database with the schema applied.
// Each seed statement runs afterwards, so a test can start from rows it
// would otherwise have to insert through the store.
func NewTestDB(t testing.TB, seed ...string) *sql.DB {
	t.Helper()

	database, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := EnsureSchema(database); err != nil {
		t.Fatalf("applying schema: %v", err)
	}
	for _, stmt := range seed {
		if _, err := database.Exec(stmt); err != nil {
			t.Fatalf("seeding %q: %v", stmt, err)
		}
	}
	return database
}
