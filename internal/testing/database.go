package testing

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Renagang21/o4o-platform-sub086/db"
)

var testDBCounter atomic.Int64

// CreateTestDB creates an in-memory SQLite test database with all
// migrations applied. Automatically registers cleanup via t.Cleanup().
//
// The database uses a uniquely named shared-cache DSN so every pooled
// connection sees the same in-memory database, with foreign keys and
// busy timeout set connection-wide through the DSN.
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared&_foreign_keys=on&_busy_timeout=5000",
		testDBCounter.Add(1))
	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := db.Migrate(database, nil); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		database.Close()
	})

	return database
}
