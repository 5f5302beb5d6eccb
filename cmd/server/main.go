package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/sdtm/internal/compliance"
	"github.com/JonMunkholm/sdtm/internal/config"
	"github.com/JonMunkholm/sdtm/internal/core"
	_ "github.com/JonMunkholm/sdtm/internal/core/rules" // Register code rule sets
	"github.com/JonMunkholm/sdtm/internal/logging"
	"github.com/JonMunkholm/sdtm/internal/metrics"
	"github.com/JonMunkholm/sdtm/internal/standards"
	"github.com/JonMunkholm/sdtm/internal/store"
	"github.com/JonMunkholm/sdtm/internal/web"
)

func main() {
	// .env is optional; Overload lets it win over the shell for local runs.
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	runStore, err := store.Open(ctx, store.Options{
		Backend:         cfg.Store.Backend,
		DatabaseURL:     cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		RedisURL:        cfg.Redis.URL,
		KeyPrefix:       cfg.Redis.KeyPrefix,
		TTL:             cfg.Redis.TTL,
	})
	if err != nil {
		slog.Error("failed to open run store", "backend", cfg.Store.Backend, "error", err)
		os.Exit(1)
	}
	defer runStore.Close()
	slog.Info("run store ready", "backend", cfg.Store.Backend)

	loader, err := standards.NewDefaultLoader()
	if err != nil {
		slog.Error("failed to load bundled standards", "error", err)
		os.Exit(1)
	}
	if cfg.Standards.Dir != "" {
		n, err := loader.LoadDir(cfg.Standards.Dir)
		if err != nil {
			slog.Error("failed to load standards directory", "dir", cfg.Standards.Dir, "error", err)
			os.Exit(1)
		}
		slog.Info("standards directory loaded", "dir", cfg.Standards.Dir, "sources", n)
	}

	registry := core.DefaultRegistry()
	slog.Info("standards registered",
		"catalog", len(loader.Catalog().List()),
		"code_rule_sets", len(registry.Standards()),
		"code_rules", registry.RuleCount(),
		"default", cfg.Standards.Default,
	)

	service, err := compliance.NewService(compliance.Options{
		Registry:        registry,
		Loader:          loader,
		Store:           runStore,
		Limiter:         compliance.NewRunLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		Metrics:         metrics.New(nil),
		RunTimeout:      cfg.Upload.Timeout,
		DefaultStandard: cfg.Standards.Default,
		MaxFileSize:     cfg.Upload.MaxFileSize,
		MaxFiles:        cfg.Upload.MaxFiles,
	})
	if err != nil {
		slog.Error("failed to create compliance service", "error", err)
		os.Exit(1)
	}

	server := web.NewServer(service, cfg, nil)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for runs to complete", "active", status.Active)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("shutdown incomplete", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
