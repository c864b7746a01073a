// Command train runs one offline training job: it reads historical
// observations from the configured source, builds and balances the training
// grid, fits the classifier, and persists the artifact pair. The handle of
// the new artifact is printed on success and becomes CURRENT for serving.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/riskline/accident-risk-service/internal/adapter/csvsource"
	"github.com/riskline/accident-risk-service/internal/adapter/postgres"
	"github.com/riskline/accident-risk-service/internal/artifact"
	"github.com/riskline/accident-risk-service/internal/config"
	"github.com/riskline/accident-risk-service/internal/ml"
	"github.com/riskline/accident-risk-service/internal/observability"
	"github.com/riskline/accident-risk-service/internal/trainer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	source, cleanup, err := newSource(cfg, logger)
	if err != nil {
		logger.Error("failed to open observation source", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	store, err := artifact.NewStore(cfg.ArtifactDir, logger)
	if err != nil {
		logger.Error("failed to open artifact store", "error", err)
		os.Exit(1)
	}

	balancer := ml.Balancer{
		Strategy:    ml.Strategy(cfg.BalanceStrategy),
		TargetRatio: cfg.BalanceRatio,
		Neighbors:   cfg.BalanceNeighbors,
		Seed:        cfg.Seed,
	}
	forest := ml.ForestConfig{
		Trees:    cfg.ForestTrees,
		MaxDepth: cfg.ForestMaxDepth,
		Seed:     cfg.Seed,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	t := trainer.New(source, store, balancer, forest, logger, metrics)
	handle, err := t.Run(ctx)
	if err != nil {
		logger.Error("training failed", "error", err)
		os.Exit(1)
	}

	logger.Info("training complete", "handle", string(handle))
	fmt.Println(handle)
}

func newSource(cfg *config.Config, logger *slog.Logger) (trainer.ObservationSource, func(), error) {
	switch cfg.Source {
	case "postgres":
		repo, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { repo.Close() }, nil //nolint:errcheck // shutdown path
	default:
		return csvsource.New(cfg.CSVPath, logger), func() {}, nil
	}
}
