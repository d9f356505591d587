// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package main is the entry point for the webtoprint personalization
// service. It loads configuration, connects to services, sets up routing,
// and starts the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webtoprint/internal/assets"
	"webtoprint/internal/cache"
	"webtoprint/internal/config"
	"webtoprint/internal/database"
	"webtoprint/internal/handlers"
	"webtoprint/internal/logging"
	"webtoprint/internal/middleware"
	"webtoprint/internal/personalization"
	"webtoprint/internal/renderapi"
	"webtoprint/internal/router"
	"webtoprint/internal/session"
	"webtoprint/internal/storage"
	"webtoprint/internal/store"
)

// Session-creating and upload requests allowed per client IP and window.
const (
	rateLimit  = 30
	rateWindow = time.Minute

	// evictionInterval is how often idle sessions are swept from memory.
	evictionInterval = time.Minute
)

func main() {
	// Console logging until the configuration says otherwise.
	logging.Init(os.Stdout, logging.Options{Level: "info"})

	// Load configuration from the optional file and environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logCloser := logging.Init(os.Stdout, logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	defer logCloser.Close()

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"render_url", cfg.RenderURL,
	)

	// Connect to PostgreSQL.
	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations.
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed development data (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	// Connect to Valkey (preview cache + live session snapshots).
	valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword, cfg.ValkeyDB)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	// Rendering service, fronted by the Valkey preview cache.
	if cfg.RenderURL == "" {
		slog.Warn("rendering service not configured, previews will fail")
	}
	renderClient := renderapi.New(renderapi.Config{
		BaseURL: cfg.RenderURL,
		APIKey:  cfg.RenderAPIKey,
		Timeout: cfg.RenderTimeout,
	})
	previewCache := cache.NewPreviewCache(valkeyClient, cfg.PreviewCacheTTL)
	renderer := cache.NewCachedRenderer(renderClient, previewCache, cfg.ShareLinks)

	// Template descriptions are cached in PostgreSQL.
	templates := store.NewCachedTemplates(
		renderClient,
		store.NewTemplateDescriptionStore(db),
		store.NewCacheLogStore(db),
		previewCache,
		cfg.TemplateMaxAge,
	)

	// Asset service: the remote API when configured, otherwise S3-compatible
	// object storage, otherwise uploads are disabled.
	var assetService personalization.AssetService
	switch {
	case cfg.AssetURL != "":
		assetService = assets.New(assets.Config{BaseURL: cfg.AssetURL, APIKey: cfg.AssetAPIKey})
		slog.Info("asset service configured", "url", cfg.AssetURL)
	default:
		storageClient, err := storage.New(
			cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey,
			cfg.S3Bucket, cfg.S3PublicURL,
		)
		if err != nil {
			slog.Error("failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		if storageClient != nil {
			assetService = storage.NewAssets(storageClient)
			slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
		} else {
			slog.Warn("no asset service or s3 storage configured, uploads disabled")
		}
	}

	// Snapshots go to Valkey for live sessions and PostgreSQL for sessions
	// that outlive the Valkey TTL.
	sessionStore := session.NewStore(valkeyClient, cfg.SecureCookies)
	snapshots := personalization.SnapshotChain{sessionStore, store.NewPersonalizationStore(db)}

	manager := personalization.NewManager(personalization.Config{
		Renderer: renderer,
		Assets:   assetService,
		Options: personalization.Options{
			UpdateFirstPreviewOnLoad: cfg.UpdateFirstPreviewOnLoad,
			PreserveFields:           cfg.PreserveFields,
			ShareLinks:               cfg.ShareLinks,
			InPreviewEdit:            cfg.InPreviewEdit,
			RenderTimeout:            cfg.RenderTimeout,
		},
	}, templates, snapshots)
	stopEviction := manager.StartEviction(cfg.SessionIdleTimeout, evictionInterval)
	defer stopEviction()

	clientKey := middleware.ClientIP
	if cfg.TrustProxy {
		clientKey = middleware.ProxiedClientIP
	}
	limiter := middleware.NewRateLimiter(rateLimit, rateWindow, clientKey)
	defer limiter.Stop()

	// Set up the Chi router with all middleware and routes.
	r := router.New(handlers.NewSessions(manager, sessionStore), limiter)

	// WriteTimeout must accommodate multi-page renders and URL uploads.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	// Give active requests up to 30 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
