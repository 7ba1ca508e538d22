package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	brokeradapter "github.com/emiliorios/mpgateway/internal/adapter/driven/broker"
	mpadapter "github.com/emiliorios/mpgateway/internal/adapter/driven/mercadopago"
	"github.com/emiliorios/mpgateway/internal/adapter/driven/redisledger"
	sqliteadapter "github.com/emiliorios/mpgateway/internal/adapter/driven/sqlite"
	httphandler "github.com/emiliorios/mpgateway/internal/adapter/driving/http"
	"github.com/emiliorios/mpgateway/internal/application"
	"github.com/emiliorios/mpgateway/internal/config"
	"github.com/emiliorios/mpgateway/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"api_base_url", cfg.APIBaseURL,
		"redis", cfg.RedisAddr != "",
		"webhook_secret", cfg.HasWebhookSecret(),
	)
	if !cfg.HasWebhookSecret() {
		slog.Warn("no webhook secret configured, all inbound notifications will be rejected")
	}

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open link database and run migrations.
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("database ready", "path", cfg.DBPath)

	// 4. Wire driven adapters.
	broker := brokeradapter.NewClient(cfg.BrokerURL, cfg.AppID, cfg.HTTPTimeout)
	paymentAPI := mpadapter.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout)
	linkStore := sqliteadapter.NewLinkRepo(db)

	var ledger driven.EventLedger
	if cfg.RedisAddr != "" {
		redisLedger, err := redisledger.New(ctx, cfg.RedisAddr, cfg.EventRetention)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := redisLedger.Close(); closeErr != nil {
				slog.Error("error closing redis", "error", closeErr)
			}
		}()
		ledger = redisLedger
		slog.Info("using redis event ledger", "addr", cfg.RedisAddr)
	} else {
		ledger = application.NewMemoryLedger(cfg.EventRetention)
	}

	// 5. Application services.
	registry := prometheus.NewRegistry()
	cache := application.NewCredentialCache(broker, slog.Default())
	links := application.NewLinkService(linkStore, slog.Default())
	dispatcher := application.NewDispatcher(
		cache,
		paymentAPI,
		ledger,
		links,
		nil, // payment hand-off beyond logging is wired here when needed
		cfg.HTTPTimeout,
		slog.Default(),
		application.NewMetrics(registry),
	)

	// 6. HTTP handler and server.
	handler := httphandler.NewHandler(cache, paymentAPI, dispatcher, linkStore, cfg.WebhookSecret, slog.Default())
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(handler, slog.Default(), registry),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// 7. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 8. Graceful shutdown with 10s timeout to drain in-flight requests.
	// Detached webhook dispatches carry their own bounded timeout and are
	// not waited on, matching the fast-acknowledgement contract.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		return err
	}

	slog.Info("shutdown complete")
	return nil
}
