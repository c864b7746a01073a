// Command serve loads the current trained artifact and serves probability
// lookups over HTTP. SIGHUP reloads the artifact in place: requests in flight
// see either the old or the new model, never a mix.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/riskline/accident-risk-service/internal/adapter/csvsource"
	httpadapter "github.com/riskline/accident-risk-service/internal/adapter/http"
	"github.com/riskline/accident-risk-service/internal/adapter/postgres"
	"github.com/riskline/accident-risk-service/internal/artifact"
	"github.com/riskline/accident-risk-service/internal/config"
	"github.com/riskline/accident-risk-service/internal/observability"
	"github.com/riskline/accident-risk-service/internal/service"
	"github.com/riskline/accident-risk-service/internal/stats"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	store, err := artifact.NewStore(cfg.ArtifactDir, logger)
	if err != nil {
		logger.Error("failed to open artifact store", "error", err)
		os.Exit(1)
	}

	predictor := service.NewPredictor(logger, metrics)

	current, err := store.LoadCurrent()
	if err != nil {
		logger.Error("failed to load model", "error", err)
		os.Exit(1)
	}
	predictor.Reload(current)

	summarizer, cleanup, err := newSummarizer(cfg, logger)
	if err != nil {
		logger.Error("failed to open observation source", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := httpadapter.NewServer(cfg.HTTPAddr, predictor, summarizer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Out-of-band reload: SIGHUP after a retrain swaps in the new artifact.
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	go func() {
		for range reload {
			fresh, err := store.LoadCurrent()
			if err != nil {
				logger.Error("reload failed, keeping current model", "error", err)
				continue
			}
			predictor.Reload(fresh)
		}
	}()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

func newSummarizer(cfg *config.Config, logger *slog.Logger) (*stats.Service, func(), error) {
	switch cfg.Source {
	case "postgres":
		repo, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return stats.New(repo), func() { repo.Close() }, nil //nolint:errcheck // shutdown path
	default:
		return stats.New(csvsource.New(cfg.CSVPath, logger)), func() {}, nil
	}
}
