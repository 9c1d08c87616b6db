package db

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// One connection so every statement sees the same in-memory database
	database.SetMaxOpenConns(1)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestMigrateCreatesAllTables(t *testing.T) {
	database := openMemoryDB(t)
	require.NoError(t, Migrate(database, nil))

	for _, table := range []string{"schema_migrations", "scheduled_jobs", "job_executions", "job_failure_queue"} {
		var name string
		err := database.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	database := openMemoryDB(t)
	require.NoError(t, Migrate(database, nil))
	require.NoError(t, Migrate(database, nil))

	// Each migration recorded exactly once
	var count int
	require.NoError(t, database.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 4, count)
}

func TestOpenAppliesPragmas(t *testing.T) {
	database, err := Open(t.TempDir()+"/engine.db", nil)
	require.NoError(t, err)
	defer database.Close()

	var fk int
	require.NoError(t, database.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}
