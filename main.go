// landform.report serves stored accuracy-assessment and ensemble-voting
// results over HTTP. Batch work happens in the CLIs under cmd/; this binary
// only reads (and migrates) the results database.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"github.com/relief-data/landform.report/internal/db"
	"github.com/relief-data/landform.report/internal/landform/monitor"
	"github.com/relief-data/landform.report/internal/version"
)

var (
	listen    = flag.String("listen", ":8080", "HTTP listen address")
	dbFile    = flag.String("db", "landform_results.db", "Path to the SQLite results database")
	noMigrate = flag.Bool("no-migrate", false, "Skip running schema migrations on startup")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("HTTP listen address is required")
	}

	log.Printf("landform.report %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open results database: %v", err)
	}
	defer database.Close()

	if !*noMigrate {
		if err := database.MigrateUp(); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}
	if v, dirty, err := database.MigrateVersion(); err == nil {
		log.Printf("Schema version %d (dirty=%v)", v, dirty)
	}

	server := monitor.NewWebServer(monitor.WebServerConfig{
		Address: *listen,
		DB:      database,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("Serving results on %s", *listen)
		if err := server.Start(ctx); err != nil {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	wg.Wait()
	log.Print("Server stopped")
}
