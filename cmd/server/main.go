/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the merit review engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load optional .env, parse command-line flags
  2. Initialize SQLite store
  3. Build authz enforcer and grant admin roles from ADMIN_USERS
  4. Wire domain services (engine, plan service, publisher, validator,
     exporter) and the API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: merit.db)
           Use ":memory:" for an in-memory database

ENVIRONMENT (via .env or the process environment):
  ADMIN_USERS   Comma-separated actor IDs granted the admin role
  PORT          Overrides -port when set

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/merit.db"

  # Run with in-memory database and two admins
  ADMIN_USERS=alice,bob ./server -db=":memory:"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
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
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/merit-engine/api"
	"github.com/warp/merit-engine/authz"
	"github.com/warp/merit-engine/cycle"
	"github.com/warp/merit-engine/merit"
	"github.com/warp/merit-engine/publish"
	"github.com/warp/merit-engine/store/sqlite"
)

func main() {
	// Optional .env; absence is not an error.
	_ = godotenv.Load()

	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "merit.db", "SQLite database path")
	flag.Parse()

	if env := os.Getenv("PORT"); env != "" {
		if p, err := strconv.Atoi(env); err == nil {
			*port = p
		}
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Authorization
	enforcer, err := authz.New()
	if err != nil {
		log.Fatalf("Failed to build authz enforcer: %v", err)
	}
	for _, actor := range strings.Split(os.Getenv("ADMIN_USERS"), ",") {
		actor = strings.TrimSpace(actor)
		if actor == "" {
			continue
		}
		if err := enforcer.Grant(actor, authz.RoleAdmin); err != nil {
			log.Fatalf("Failed to grant admin role to %s: %v", actor, err)
		}
		log.Printf("Granted admin role to %s", actor)
	}

	// Domain services
	engine := &merit.Engine{
		Scenarios: store,
		Snapshots: store,
		Bands:     store,
		Rates:     store,
		Runs:      store,
	}
	planSvc := &cycle.Service{
		Cycles:   store,
		Plans:    store,
		Closures: store,
		Perm:     enforcer,
	}
	readiness := &publish.Validator{
		Cycles:    store,
		Plans:     store,
		Pubs:      store,
		Scenarios: store,
		Snapshots: store,
	}
	publisher := &publish.Publisher{
		Cycles:    store,
		Plans:     store,
		Closures:  store,
		Scenarios: store,
		Runs:      store,
		Pubs:      store,
		Validator: readiness,
		Perm:      enforcer,
	}
	exporter := &publish.Exporter{Pubs: store}

	handler := api.NewHandler(engine, planSvc, publisher, readiness, exporter, store, store, store, enforcer)
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
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
