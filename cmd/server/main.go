// Package main is the entry point for the contact-insight web server.
//
// The main package stays minimal. Its job is to:
// 1. Read configuration (from env vars, optionally seeded from a .env file)
// 2. Create the logger
// 3. Start the server
//
// All actual logic lives in internal/server and the packages it wires.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/sakif/contact-insight/internal/server"
)

func main() {
	// === 1. SET UP LOGGING ===
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// === 2. LOAD .env ===
	// A missing .env is normal in production; real env vars always win because
	// godotenv.Load never overrides a variable that is already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("could not read .env", slog.String("error", err.Error()))
	}

	cfg, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 3. DATABASE DIRECTORY ===
	// The default ":memory:" keeps credentials in process, so a restart signs
	// everyone out. A file path needs its directory to exist.
	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		logger.Warn("GOOGLE_CLIENT_ID or GOOGLE_CLIENT_SECRET not set; sign-in will fail")
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, logger)
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

// loadConfig reads the server configuration from the environment.
//
//	PORT                  listen port (default 8080)
//	DB_PATH               SQLite path for credentials (default ":memory:")
//	SESSION_SECRET        signs the session cookie, at least 16 characters
//	GOOGLE_CLIENT_ID      OAuth client
//	GOOGLE_CLIENT_SECRET
//	GOOGLE_CALLBACK_URL   default http://localhost:$PORT/auth/google/callback
//	MAX_CONTACT_PAGES     safety cap on one contact aggregation
//	VIEW_TTL              idle lifetime of a browser's view, e.g. "12h"
func loadConfig() (server.Config, error) {
	cfg := server.Config{
		Port:               8080,
		DBPath:             ":memory:",
		SessionSecret:      os.Getenv("SESSION_SECRET"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleCallbackURL:  os.Getenv("GOOGLE_CALLBACK_URL"),
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}

	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	if cfg.GoogleCallbackURL == "" {
		cfg.GoogleCallbackURL = fmt.Sprintf("http://localhost:%d/auth/google/callback", cfg.Port)
	}

	if v := os.Getenv("MAX_CONTACT_PAGES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("invalid MAX_CONTACT_PAGES %q", v)
		}
		cfg.MaxContactPages = n
	}

	if v := os.Getenv("VIEW_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid VIEW_TTL %q: %w", v, err)
		}
		cfg.ViewTTL = d
	}

	return cfg, nil
}
