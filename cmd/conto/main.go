package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"conto/internal/amqp"
	"conto/internal/cache"
	"conto/internal/cli"
	"conto/internal/core"
	apphttp "conto/internal/http"
	applog "conto/internal/log"
	"conto/internal/metrics"
	"conto/internal/report"
	"conto/internal/rules"
	"conto/internal/services"
	"conto/internal/store"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentApp)
	ctx := context.Background()

	b := cli.InitBackend(ctx, logger, cfg)
	defer b.Close()

	m := metrics.New()

	st := store.New(b.Transactions, store.Options{InitTimeout: cfg.StoreInitTimeout})
	if err := st.Load(ctx); err != nil {
		// the app still serves; new changes are kept in memory
		logger.Error("Failed to load transactions, starting empty", "error", err)
	}

	engine := rules.NewEngine(b.Rules)
	if err := engine.Load(ctx); err != nil {
		logger.Error("Failed to load rules, starting without rules", "error", err)
	}

	var publisher services.SyncPublisher
	if cfg.AMQPURL != "" && b.SQLite != nil {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	previews := services.NewPreviewCache(cfg.PreviewCacheSize, m)
	caches := cache.NewManager()
	caches.Register(previews)
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	settings := services.NewSettingsService(b.Settings)
	srv := apphttp.NewServer(apphttp.Services{
		Transactions: services.NewTransactionService(st, engine, settings, publisher, m),
		Imports:      services.NewImportService(st, engine, previews, publisher, m),
		Settings:     settings,
		Rules:        engine,
	}, apphttp.Options{
		Addr:           net.JoinHostPort("", cfg.Port),
		MaxUploadBytes: cfg.MaxUploadBytes(),
		RateLimitRPM:   cfg.RateLimitRPM,
		Names:          report.Names{Person1: cfg.Name(core.PartyPerson1), Person2: cfg.Name(core.PartyPerson2)},
		Metrics:        m,
		Logger:         logger,
		Ready:          b.Ping,
	})

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting conto server", "port", cfg.Port, "backend", cfg.DataBackend,
		"transactions", len(st.Snapshot()), "sync_enabled", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
