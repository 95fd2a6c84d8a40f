// Command conto-import loads bank statement files into the transaction
// store from the command line, the same way the upload endpoint does.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"conto/internal/amqp"
	"conto/internal/cli"
	"conto/internal/core"
	"conto/internal/importer"
	applog "conto/internal/log"
	"conto/internal/rules"
	"conto/internal/services"
	"conto/internal/store"
)

func main() {
	paidBy := flag.String("paid-by", "person1", "who paid: person1 or person2")
	card := flag.String("card", "", "card name stamped on every row")
	includeDups := flag.Bool("include-duplicates", false, "store rows that look like duplicates too")
	dryRun := flag.Bool("dry-run", false, "show the preview without storing anything")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] statement.csv [more files...]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, logger := cli.Bootstrap(applog.ComponentImport)
	ctx := context.Background()

	party, err := core.ParseParty(*paidBy)
	if err != nil {
		logger.Error("Invalid -paid-by", "error", err)
		os.Exit(2)
	}

	b := cli.InitBackend(ctx, logger, cfg)
	defer b.Close()

	st := store.New(b.Transactions, store.Options{InitTimeout: cfg.StoreInitTimeout})
	if err := st.Load(ctx); err != nil {
		logger.Error("Failed to load existing transactions", "error", err)
		os.Exit(1)
	}
	engine := rules.NewEngine(b.Rules)
	if err := engine.Load(ctx); err != nil {
		logger.Warn("Failed to load rules, importing without them", "error", err)
	}

	var publisher services.SyncPublisher
	if cfg.AMQPURL != "" && b.SQLite != nil && !*dryRun {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, the worker will pick rows up on its next sweep", "error", err)
		} else {
			defer client.Close()
			publisher = client
		}
	}

	files, closeFiles, err := openFiles(flag.Args())
	if err != nil {
		logger.Error("Failed to open statement", "error", err)
		os.Exit(1)
	}
	defer closeFiles()

	svc := services.NewImportService(st, engine, services.NewPreviewCache(1, nil), publisher, nil)
	preview, err := svc.Preview(ctx, files, importer.Options{PaidBy: party, Card: *card})
	if err != nil {
		logger.Error("Import failed", "error", err)
		os.Exit(1)
	}

	var committed *services.Committed
	if !*dryRun {
		res, err := svc.Commit(ctx, preview.ID, *includeDups)
		if err != nil {
			logger.Error("Failed to store imported transactions", "error", err)
			if len(res.Imported) == 0 {
				os.Exit(1)
			}
		}
		committed = &res
	}

	fmt.Println(renderSummary(preview, committed))
	if len(preview.Problems) > 0 {
		os.Exit(1)
	}
}

func openFiles(paths []string) ([]importer.File, func(), error) {
	var (
		files   []importer.File
		handles []*os.File
	)
	closeAll := func() {
		for _, h := range handles {
			_ = h.Close()
		}
	}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("open %s: %w", p, err)
		}
		handles = append(handles, f)
		files = append(files, importer.File{Name: filepath.Base(p), Reader: f})
	}
	return files, closeAll, nil
}
