// Command ingest consumes raw incident records from the source topic and
// appends them to the Postgres observation store, batch by batch.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/riskline/accident-risk-service/internal/adapter/http"
	kafkaadapter "github.com/riskline/accident-risk-service/internal/adapter/kafka"
	"github.com/riskline/accident-risk-service/internal/adapter/postgres"
	"github.com/riskline/accident-risk-service/internal/config"
	"github.com/riskline/accident-risk-service/internal/ingest"
	"github.com/riskline/accident-risk-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.PostgresDSN == "" {
		slog.Error("POSTGRES_DSN is required for ingest")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	repo, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	reader := kafkaadapter.NewReader(cfg, logger)

	p := ingest.New(reader, repo, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewHealthServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("ingest error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := repo.Close(); err != nil {
		logger.Error("postgres close error", "error", err)
	}

	logger.Info("shutdown complete")
}
