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

	"github.com/csvask/csvask/internal/api"
	"github.com/csvask/csvask/internal/auth"
	"github.com/csvask/csvask/internal/config"
	"github.com/csvask/csvask/internal/dataset"
	historypostgres "github.com/csvask/csvask/internal/history/postgres"
	"github.com/csvask/csvask/internal/nl2sql"
	"github.com/csvask/csvask/internal/observability"
	"github.com/csvask/csvask/internal/pipeline"
	s3store "github.com/csvask/csvask/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("csvask-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	if cfg.Dataset.Source == "" {
		logger.Error("CSVASK_DATASET_SOURCE is required")
		os.Exit(1)
	}

	objectStore, err := s3store.New(s3store.Config{
		Endpoint:        cfg.ObjectStore.Endpoint,
		Region:          cfg.ObjectStore.Region,
		AccessKeyID:     cfg.ObjectStore.AccessKeyID,
		SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
		UseSSL:          cfg.ObjectStore.UseSSL,
	})
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	generator, err := nl2sql.NewOpenAIGenerator(nl2sql.OpenAIConfig{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize language model client", slog.Any("error", err))
		os.Exit(1)
	}

	deps := pipeline.Dependencies{
		Generator: generator,
		Resolver:  &dataset.Resolver{Store: objectStore},
		Logger:    logger,
	}
	readiness := []api.ReadinessCheck{api.CheckAIConfig(cfg)}
	if cfg.History.DSN != "" {
		historyDB, err := historypostgres.Open(context.Background(), historypostgres.DBConfig{
			DSN:             cfg.History.DSN,
			MaxOpenConns:    cfg.History.MaxOpenConns,
			MaxIdleConns:    cfg.History.MaxIdleConns,
			ConnMaxIdleTime: cfg.History.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.History.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open history db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = historyDB.Close() }()
		recorder := historypostgres.NewRecorder(historyDB)
		deps.Recorder = recorder
		readiness = append(readiness, recorder.HealthCheck)
	}

	runner, err := pipeline.New(context.Background(), pipeline.Config{
		Source:           cfg.Dataset.Source,
		SchemaSampleRows: cfg.Dataset.SchemaSampleRows,
		MaxResultRows:    cfg.Dataset.MaxResultRows,
		Model:            generator.Model(),
	}, deps)
	if err != nil {
		logger.Error("failed to bind dataset", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = runner.Close() }()

	apiDeps := api.Dependencies{
		Logger:            logger,
		Answerer:          runner,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: time.Second,
		AskTimeout:        cfg.HTTP.AskTimeout,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		if validator.Len() == 0 {
			logger.Warn("auth required but no static keys configured; protected routes will reject every request")
		}
		apiDeps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, apiDeps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address), slog.String("dataset", cfg.Dataset.Source))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
