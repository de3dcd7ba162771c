package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/csvask/csvask/internal/cli/csvask"
	"github.com/csvask/csvask/internal/config"
	"github.com/csvask/csvask/internal/dataset"
	"github.com/csvask/csvask/internal/history"
	historypostgres "github.com/csvask/csvask/internal/history/postgres"
	"github.com/csvask/csvask/internal/observability"
	s3store "github.com/csvask/csvask/internal/storage/s3"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadFromEnv("csvask")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}
	// Logs go to stderr so they never interleave with answers.
	logger := observability.NewLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resolver := &dataset.Resolver{}
	if store, err := s3store.New(s3store.Config{
		Endpoint:        cfg.ObjectStore.Endpoint,
		Region:          cfg.ObjectStore.Region,
		AccessKeyID:     cfg.ObjectStore.AccessKeyID,
		SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
		UseSSL:          cfg.ObjectStore.UseSSL,
	}); err != nil {
		logger.Warn("object store unavailable; s3:// sources disabled", slog.Any("error", err))
	} else {
		resolver.Store = store
	}

	var recorder history.Recorder
	if cfg.History.DSN != "" {
		db, err := historypostgres.Open(ctx, historypostgres.DBConfig{
			DSN:             cfg.History.DSN,
			MaxOpenConns:    cfg.History.MaxOpenConns,
			MaxIdleConns:    cfg.History.MaxIdleConns,
			ConnMaxIdleTime: cfg.History.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.History.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open history db", slog.Any("error", err))
			return 1
		}
		defer func() { _ = db.Close() }()
		recorder = historypostgres.NewRecorder(db)
	}

	return csvask.Run(ctx, os.Args[1:], csvask.Options{
		Config:   cfg,
		Resolver: resolver,
		Recorder: recorder,
		Logger:   logger,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	})
}
