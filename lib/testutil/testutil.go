package testutil

import (
	"database/sql"
	"testing"

	"edziennik-backend/internal/db"
	"edziennik-backend/pkg/migrations"
)

// SetupDB opens a fresh in-memory database with the schema applied, it is
// closed when the test ends.
func SetupDB(t testing.TB) *sql.DB {
	t.Helper()

	sqlite, err := migrations.OpenAndMigrateDB(db.Schema, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		sqlite.Close()
	})
	return sqlite
}
