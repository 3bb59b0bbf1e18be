/*
main.go - Application entry point

PURPOSE:
  Starts the cashbook engine server. Handles configuration, dependency
  wiring, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load configuration (yaml via viper, defaults when no file)
  3. Open the SQLite store
  4. Wire the ledger book, due book, drafts and API handler
  5. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to a yaml config file (optional; defaults apply)
  -port    Overrides server.port from the config
  -db      Overrides store.path; use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, wait for active requests
  (30s timeout), close the database, exit.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coldworks/cashbook-engine/api"
	"github.com/coldworks/cashbook-engine/config"
	"github.com/coldworks/cashbook-engine/drafts"
	"github.com/coldworks/cashbook-engine/dues"
	"github.com/coldworks/cashbook-engine/ledger"
	"github.com/coldworks/cashbook-engine/logger"
	"github.com/coldworks/cashbook-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}

	store, err := sqlite.New(cfg.Store.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer store.Close()

	dueBook := dues.NewBook(store, store)
	book := ledger.NewBook(cfg.Tenant.ID, ledger.BookDeps{
		Store:    store,
		Sales:    store,
		Openings: store,
		Dues:     dueBook,
		Log:      log,
	})

	handler := &api.Handler{
		Tenant:   cfg.Tenant.ID,
		Book:     book,
		Dues:     dueBook,
		Sales:    store,
		Openings: store,
		Drafts:   drafts.NewStore(cfg.Drafts.TTL),
		Log:      log,
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("db", cfg.Store.Path).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server stopped")
}
