package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/rs/cors"

	"arcane-atlas/config"
	"arcane-atlas/handlers"
	"arcane-atlas/logger"
	"arcane-atlas/middleware"
	"arcane-atlas/models"
	"arcane-atlas/persistence"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.Init(cfg.Logging)

	var store persistence.DocumentStore
	switch cfg.Store.Backend {
	case "postgres":
		store, err = persistence.NewPostgresStore(cfg.Store.PostgresURL)
		slog.Info("using PostgreSQL document store")
	default:
		store, err = persistence.NewFileStore(cfg.Store.DataDir)
		slog.Info("using file document store", "dir", cfg.Store.DataDir)
	}
	if err != nil {
		slog.Error("failed to initialize document store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	rooms := handlers.NewRoomManager()

	var notifier handlers.DocumentNotifier = rooms
	if cfg.Redis.URL != "" {
		bridge, err := handlers.NewRedisBridge(context.Background(), cfg.Redis.URL, models.NewID(), rooms)
		if err != nil {
			slog.Error("failed to connect redis room bridge", "error", err)
			os.Exit(1)
		}
		defer bridge.Close()
		notifier = bridge
	}

	api := handlers.NewAPI(store, notifier)

	mux := http.NewServeMux()
	api.Register(mux)
	mux.HandleFunc("/ws", handlers.ServeWS(rooms))

	limiter := middleware.NewRateLimiter(
		cfg.RateLimit.RequestsPerSecond,
		cfg.RateLimit.BurstSize,
		cfg.RateLimit.Enabled,
	)
	handler := cors.AllowAll().Handler(limiter.Middleware(mux))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	slog.Info("server starting", "port", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
