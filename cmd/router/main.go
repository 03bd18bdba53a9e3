package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/careroute/intake-router/internal/appointments"
	backend "github.com/careroute/intake-router/internal/backend/openai"
	"github.com/careroute/intake-router/internal/chat"
	"github.com/careroute/intake-router/internal/classify"
	"github.com/careroute/intake-router/internal/config"
	"github.com/careroute/intake-router/internal/server"
	"github.com/careroute/intake-router/internal/storage"
	sqlitestore "github.com/careroute/intake-router/internal/storage/sqlite"
	"github.com/careroute/intake-router/internal/telemetry"
	"github.com/careroute/intake-router/internal/tenant"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.Setup("intake-router", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	registry, err := tenant.LoadDir(cfg.Orgs.Dir)
	if err != nil {
		log.Fatalf("Failed to load tenant catalogs: %v", err)
	}
	for _, org := range registry.Orgs() {
		logger.Info("loaded tenant catalog",
			slog.String("org", org),
			slog.Int("programs", registry.Resolve(org).Len()),
		)
	}

	chatBackend := backend.NewClient(cfg.Backend.APIKey,
		backend.WithBaseURL(cfg.Backend.BaseURL),
		backend.WithModel(cfg.Backend.Model),
	)
	if cfg.Backend.APIKey == "" {
		logger.Warn("no backend API key configured, classification will use the keyword fallback")
	}

	var store storage.InteractionStore = &storage.NopStore{}
	if cfg.Storage.Type == "sqlite" {
		s, err := sqlitestore.New(cfg.Storage.SQLite.Path)
		if err != nil {
			log.Fatalf("Failed to open interaction store: %v", err)
		}
		store = s
	}
	defer store.Close()

	var directory server.AppointmentDirectory
	if cfg.Calendar.Credentials != "" {
		ids, err := appointments.LoadCalendarIDs(cfg.Calendar.IDsFile)
		if err != nil {
			log.Fatalf("Failed to load calendar ids: %v", err)
		}
		d, err := appointments.New(cfg.Calendar.Credentials, ids, cfg.Calendar.Timezone, logger)
		if err != nil {
			log.Fatalf("Failed to build appointment directory: %v", err)
		}
		directory = d
		logger.Info("appointment directory enabled", slog.Int("calendars", len(ids)))
	}

	classifier := classify.New(registry, chatBackend, logger)
	session := chat.NewSession(chatBackend, logger)

	srv := server.New(cfg.Server.Port, logger)
	handlers := server.NewHandlers(classifier, session, registry, store, directory, logger)
	handlers.Mount(srv.Router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case <-sigCh:
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
