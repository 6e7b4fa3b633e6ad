package sqlite

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// newTestDB opens a throwaway results database with the current schema.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	schema, err := os.ReadFile(filepath.Join("..", "..", "..", "db", "schema.sql"))
	if err != nil {
		t.Fatalf("Failed to read schema: %v", err)
	}

	d, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "store_test.db"))
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if _, err := d.Exec(string(schema)); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}
	return d
}

func ptr(v float64) *float64 { return &v }
