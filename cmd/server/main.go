// Package main is the entry point for the messagely server.
//
// MAIN PACKAGE:
// main is kept minimal. Its job is to:
// 1. Read configuration (environment variables, see internal/config)
// 2. Create the logger
// 3. Build and start the server
//
// All actual logic lives in internal/ packages, so it can be tested
// without running a process.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/messagely/internal/config"
	"github.com/sakif/messagely/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		// No configured logger yet; fall back to a default one.
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// Log levels (from least to most severe): Debug → Info → Warn → Error.
	// LOG_LEVEL picks the threshold; info is the default.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	// === 3. CREATE AND START THE SERVER ===
	// Opening the database also runs pending migrations, so give it a bound.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	srv, err := server.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
