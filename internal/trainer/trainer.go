// Package trainer orchestrates the offline training pipeline: observations in,
// persisted artifact handle out.
package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/riskline/accident-risk-service/internal/artifact"
	"github.com/riskline/accident-risk-service/internal/domain"
	"github.com/riskline/accident-risk-service/internal/ml"
	"github.com/riskline/accident-risk-service/internal/observability"
)

// ObservationSource yields the full set of historical observations for a
// training run. Implemented by the CSV and Postgres adapters.
type ObservationSource interface {
	Observations(ctx context.Context) ([]domain.Observation, error)
}

// ArtifactSaver persists a fitted classifier/encoder pair. Implemented by
// artifact.Store.
type ArtifactSaver interface {
	Save(forest *ml.Forest, encoder *ml.LocationEncoder) (artifact.Handle, error)
}

// Trainer runs the batch pipeline: build grid, fit encoder, balance, fit
// forest, persist. Training is a single offline job; the only internal
// parallelism is tree fitting inside the forest.
type Trainer struct {
	source   ObservationSource
	store    ArtifactSaver
	balancer ml.Balancer
	forest   ml.ForestConfig
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a Trainer with the given stages and observability.
func New(source ObservationSource, store ArtifactSaver, balancer ml.Balancer, forest ml.ForestConfig, logger *slog.Logger, metrics *observability.Metrics) *Trainer {
	return &Trainer{
		source:   source,
		store:    store,
		balancer: balancer,
		forest:   forest,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run executes one complete training run and returns the persisted artifact
// handle. Any stage failure aborts the run before anything is persisted;
// notably, a single-class grid fails with
// domain.ErrInsufficientClassDiversity.
func (t *Trainer) Run(ctx context.Context) (artifact.Handle, error) {
	start := time.Now()
	handle, err := t.run(ctx)
	if err != nil {
		t.metrics.TrainingRuns.WithLabelValues("error").Inc()
		return "", err
	}
	t.metrics.TrainingRuns.WithLabelValues("success").Inc()
	t.metrics.TrainingDuration.Observe(time.Since(start).Seconds())
	return handle, nil
}

func (t *Trainer) run(ctx context.Context) (artifact.Handle, error) {
	observations, err := t.source.Observations(ctx)
	if err != nil {
		return "", fmt.Errorf("read observations: %w", err)
	}
	if len(observations) == 0 {
		return "", fmt.Errorf("read observations: no rows: %w", domain.ErrInsufficientClassDiversity)
	}
	t.logger.Info("observations loaded", "count", len(observations))

	samples, locations := domain.BuildGrid(observations)
	t.metrics.GridSamples.Set(float64(len(samples)))
	t.logger.Info("grid built", "locations", len(locations), "samples", len(samples))

	encoder := ml.NewLocationEncoder()
	encoder.Fit(locations)

	x, y, err := encoder.EncodeGrid(samples)
	if err != nil {
		return "", fmt.Errorf("encode grid: %w", err)
	}

	bx, by, classWeights, err := t.balancer.Apply(x, y)
	if err != nil {
		return "", fmt.Errorf("balance dataset: %w", err)
	}
	t.metrics.SyntheticSamples.Set(float64(len(bx) - len(x)))
	t.logger.Info("dataset balanced",
		"strategy", string(t.balancer.Strategy),
		"before", len(x),
		"after", len(bx),
	)

	forest := ml.NewForest(t.forest)
	if err := forest.Fit(bx, by, classWeights); err != nil {
		return "", fmt.Errorf("fit classifier: %w", err)
	}
	t.logger.Info("classifier fitted",
		"trees", forest.Config.Trees,
		"max_depth", forest.Config.MaxDepth,
		"feature_width", forest.NumFeatures,
	)

	handle, err := t.store.Save(forest, encoder)
	if err != nil {
		return "", fmt.Errorf("persist artifact: %w", err)
	}
	return handle, nil
}
