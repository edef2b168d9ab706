package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/vitrina/vitrina/internal/config"
	"github.com/vitrina/vitrina/internal/database"
	"github.com/vitrina/vitrina/internal/gallery"
	"github.com/vitrina/vitrina/internal/geoip"
	"github.com/vitrina/vitrina/internal/logging"
	"github.com/vitrina/vitrina/internal/server"
	"github.com/vitrina/vitrina/internal/storage"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the gallery web server",
		Flags:  config.ServerFlags(),
		Action: serve,
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations",
		Flags: config.ServerFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.ServerFromCommand(cmd)
			logging.Setup(os.Stderr, cfg.LogLevel)
			db, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			slog.Info("database migrations applied")
			return nil
		},
	}
}

// connect opens the pool and brings the schema up to date.
func connect(ctx context.Context, cfg config.Server) (*database.DB, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := database.Connect(connectCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return db, nil
}

// openStorage returns nil when no bucket is configured; videos then need
// explicit URLs in their documents.
func openStorage(ctx context.Context, cfg config.Server) (*storage.Storage, error) {
	if !cfg.Storage.Enabled() {
		slog.Info("object storage not configured, media keys will not be presigned")
		return nil, nil
	}
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage initialization failed: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("storage bucket check failed: %w", err)
	}
	slog.Info("storage bucket ready", "bucket", cfg.Storage.Bucket)
	return store, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg := config.ServerFromCommand(cmd)
	logging.Setup(os.Stderr, cfg.LogLevel)

	if cfg.JWTSecret == "" {
		return server.ErrMissingSecret
	}

	db, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database migrations applied")

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	var signer gallery.MediaSigner
	if store != nil {
		signer = store
		if err := store.SetCORS(ctx, []string{cfg.BaseURL}); err != nil {
			slog.Warn("failed to set bucket CORS", "error", err)
		}
	}

	geo := geoip.New(cfg.GeoIPPath)
	defer func() { _ = geo.Close() }()

	srv, err := server.New(server.Config{
		DB:              db.Pool,
		Pinger:          db,
		Storage:         signer,
		GeoIP:           geo,
		JWTSecret:       cfg.JWTSecret,
		BaseURL:         cfg.BaseURL,
		StorageEndpoint: cfg.MediaEndpoint(),
		EnableDocs:      cfg.EnableDocs,
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("vitrina listening", "port", cfg.Port, "base_url", cfg.BaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	slog.Info("shutdown complete")
	return nil
}
