package auth

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/herpkeeper/herpkeeper-core/internal/infrastructure/database"
	_ "github.com/herpkeeper/herpkeeper-core/migrations" // register embedded migrations
)

// testDB opens a temp-file SQLite database with the full schema applied.
func testDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "auth_test.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // test cleanup
	})

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	return db
}

const testSecret = "test-secret-test-secret-test-secret-1234"
