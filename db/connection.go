// Package db manages the SQLite database used by the automation engine.
package db

import (
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Renagang21/o4o-platform-sub086/errors"
)

// connOptions are applied through the DSN so every pooled connection
// gets them, not just the one that happened to run a PRAGMA.
// WAL mode allows concurrent reads during writes.
const connOptions = "_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000"

// Open opens a SQLite database at the specified path with optimized settings.
// If logger is provided, logs database operations; otherwise operates silently.
func Open(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	if logger != nil {
		logger.Debugw("Opening database", "path", path)
	}

	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&" + connOptions
	} else {
		dsn += "?" + connOptions
	}

	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := database.Ping(); err != nil {
		database.Close()
		return nil, errors.Wrapf(err, "failed to open database at %s", path)
	}

	if logger != nil {
		logger.Infow("Database opened successfully",
			"path", path,
			"wal_mode", true,
			"foreign_keys", true,
		)
	}

	return database, nil
}
