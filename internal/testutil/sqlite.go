package testutil

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"testing"

	_ "modernc.org/sqlite"
)

// SetupSQLite creates a private in-memory SQLite database for one test.
// The connection is closed when the test completes.
func SetupSQLite(t *testing.T) *sql.DB {
	t.Helper()

	// A named shared-cache database keeps every pooled connection on the
	// same data while isolating tests from each other.
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		t.Fatalf("failed to generate database name: %v", err)
	}
	dsn := "file:test_" + hex.EncodeToString(suffix) + "?mode=memory&cache=shared"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open sqlite connection: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		t.Fatalf("failed to ping sqlite: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// ExecSQL executes statements and fails the test on error.
func ExecSQL(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()

	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("failed to execute SQL: %v\nquery: %s", err, query)
	}
}
