/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payment schedule server.
  Wires the store, the rule set and the sweeper, then serves until signalled.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Create API handler and activate rules (-rules, then -preset, then the
     last stored revision, then defaults)
  4. Start the overdue sweeper
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port            HTTP server port (default: 8080)
  -db              SQLite database path (default: schedules.db)
                   Use ":memory:" for in-memory database
  -rules           Rule file (.toml or .json); stored as a new revision
  -preset          Named rule preset (standard, construction, government, retainer)
  -sweep-interval  Overdue sweep interval, 0 disables (default: 1h)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sweeper
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -db="./data/schedules.db" -rules=./rules.toml
  ./server -db=":memory:" -preset=construction -sweep-interval=10m

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Overdue sweeper
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/payment-schedule/api"
	"github.com/warp/payment-schedule/contract"
	"github.com/warp/payment-schedule/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "schedules.db", "SQLite database path")
	rulesPath := flag.String("rules", "", "Rule file (.toml or .json)")
	preset := flag.String("preset", "", "Named rule preset")
	sweepInterval := flag.Duration("sweep-interval", time.Hour, "Overdue sweep interval (0 disables)")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize handler
	handler := api.NewHandler(store)
	ctx := context.Background()

	if err := handler.LoadRules(ctx); err != nil {
		log.Printf("Warning: Failed to load stored rules: %v", err)
	}

	switch {
	case *rulesPath != "":
		rules, err := handler.RulesFactory.ParseRulesFile(*rulesPath)
		if err != nil {
			log.Fatalf("Failed to load rules: %v", err)
		}
		if _, err := handler.ActivateRules(ctx, rules); err != nil {
			log.Fatalf("Failed to activate rules: %v", err)
		}
	case *preset != "":
		jsonStr := contract.PresetJSON(contract.Preset(*preset))
		if jsonStr == "" {
			log.Fatalf("Unknown preset: %s", *preset)
		}
		rules, err := handler.RulesFactory.ParseRules(jsonStr)
		if err != nil {
			log.Fatalf("Failed to parse preset: %v", err)
		}
		if _, err := handler.ActivateRules(ctx, rules); err != nil {
			log.Fatalf("Failed to activate rules: %v", err)
		}
	}
	log.Printf("Active rules: %s", handler.Service.Rules().Version)

	// Start sweeper
	sweeper := api.NewOverdueScheduler(store, handler.Service)
	sweeper.CheckInterval = *sweepInterval
	sweeper.Enabled = *sweepInterval > 0
	handler.Sweeper = sweeper
	sweeper.Start()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api, metrics at /metrics", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
