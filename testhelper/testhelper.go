// Package testhelper provides shared fixtures for package tests: an
// in-memory SQLite database seeded with DDL and rows.
package testhelper

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for fixtures
)

// OpenSQLite opens a private in-memory SQLite database and executes the
// given DDL statements. The handle is closed when the test finishes.
func OpenSQLite(t *testing.T, ddl ...string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// The in-memory database disappears with its last connection; a pool
	// of one keeps every statement on the same connection.
	db.SetMaxOpenConns(1)

	for _, stmt := range ddl {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to execute DDL %q: %v", stmt, err)
		}
	}

	return db
}

// Seed executes one INSERT statement with arguments, failing the test on
// error.
func Seed(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()

	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("failed to seed %q: %v", query, err)
	}
}

// Count returns the number of rows a query yields, failing the test on
// error.
func Count(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()

	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("failed to count %q: %v", query, err)
	}
	return n
}
