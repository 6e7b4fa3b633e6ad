package db

import (
	"compress/gzip"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"
)

// DB wraps the results database. All landform stores operate on the embedded
// *sql.DB; this wrapper owns connection setup, pragmas, migrations, and the
// debug/admin surface.
type DB struct {
	*sql.DB
	path string
}

// pragmas applied on open. WAL keeps the results server readable while a
// batch CLI writes.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// NewDB opens (creating if needed) the results database at path.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	return &DB{DB: sqlDB, path: path}, nil
}

// TableStats holds row counts for the debug endpoint.
type TableStats struct {
	Segments       int `json:"segments"`
	AssessmentRuns int `json:"assessment_runs"`
	ClassMetrics   int `json:"class_metrics"`
	EnsembleRuns   int `json:"ensemble_runs"`
	EnsembleVotes  int `json:"ensemble_votes"`
}

// Stats returns row counts for each table.
func (db *DB) Stats() (*TableStats, error) {
	stats := &TableStats{}
	for _, t := range []struct {
		table string
		dest  *int
	}{
		{"segments", &stats.Segments},
		{"assessment_runs", &stats.AssessmentRuns},
		{"class_metrics", &stats.ClassMetrics},
		{"ensemble_runs", &stats.EnsembleRuns},
		{"ensemble_votes", &stats.EnsembleVotes},
	} {
		if err := db.QueryRow("SELECT COUNT(*) FROM " + t.table).Scan(t.dest); err != nil {
			return nil, fmt.Errorf("count %s: %w", t.table, err)
		}
	}
	return stats, nil
}

// AttachAdminRoutes mounts the tsweb debug handler with a tailsql console
// over the results database and a backup endpoint.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://"+db.path, db.DB, &tailsql.DBOptions{
		Label: "Landform results DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the results database", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backupPath := fmt.Sprintf("backup-%d.db", time.Now().Unix())
		if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				log.Printf("Failed to remove backup file: %v", err)
			}
		}()

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")

		gz := gzip.NewWriter(w)
		defer gz.Close()
		if _, err := io.Copy(gz, backupFile); err != nil {
			log.Printf("Failed to stream backup: %v", err)
		}
	}))
}
