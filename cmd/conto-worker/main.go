package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"conto/internal/amqp"
	"conto/internal/cli"
	"conto/internal/core"
	applog "conto/internal/log"
	"conto/internal/metrics"
	"conto/internal/sheets"
	gsheet "conto/internal/sheets/google"
	"conto/internal/sheets/memory"
	"conto/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentWorker)
	logger.Info("Starting conto-worker")

	b := cli.InitBackend(context.Background(), logger, cfg)
	defer b.Close()
	if b.SQLite == nil {
		logger.Error("The sync worker needs the sqlite backend", "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if stats, err := b.SQLite.SyncStats(context.Background()); err == nil {
		logger.Info("Sync state on startup", "stats", stats)
	}

	var (
		exporter sheets.TransactionExporter
		summary  sheets.SettlementWriter
	)
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.New(context.Background(), gsheet.Config{
			SpreadsheetID:     cfg.GoogleSpreadsheetID,
			TransactionsSheet: cfg.GoogleSheetName,
			SummarySheet:      cfg.GoogleSummarySheet,
			CredentialsJSON:   cfg.GoogleServiceAccountJSON,
			CredentialsFile:   cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		exporter, summary = client, client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		sheet := memory.New()
		exporter, summary = sheet, sheet
		logger.Warn("No GOOGLE_SPREADSHEET_ID provided, exporting to an in-memory sheet")
	}

	var consumer worker.Consumer
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		consumer = client
	} else {
		logger.Info("AMQP disabled, relying on periodic sync only", "interval", cfg.SyncInterval)
	}

	m := metrics.New()
	var metricsSrv *http.Server
	if cfg.WorkerMetricsPort != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", m.Handler())
		metricsSrv = &http.Server{
			Addr:              net.JoinHostPort("", cfg.WorkerMetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error", "error", err)
			}
		}()
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(ctx)
		}
	})

	w := worker.NewSyncWorker(b.SQLite, exporter, summary, m, worker.Config{
		BatchSize:   cfg.SyncBatchSize,
		Interval:    cfg.SyncInterval,
		Person1Name: cfg.Name(core.PartyPerson1),
		Person2Name: cfg.Name(core.PartyPerson2),
	})
	if err := w.Run(ctx, consumer); err != nil {
		logger.Error("Sync worker stopped", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
