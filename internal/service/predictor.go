// Package service exposes the serving-time façade of the risk engine: a
// single-query probability lookup over a loaded artifact.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/riskline/accident-risk-service/internal/artifact"
	"github.com/riskline/accident-risk-service/internal/domain"
	"github.com/riskline/accident-risk-service/internal/observability"
)

// Predictor answers probability lookups against the current trained artifact.
// The artifact is held behind an atomic pointer: Reload swaps it wholesale, so
// concurrent Predict calls see either the old or the new model in full and
// need no locking — the artifact itself is never mutated after load.
type Predictor struct {
	current atomic.Pointer[artifact.Artifact]
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPredictor creates a Predictor with no artifact loaded. Predict fails with
// domain.ErrModelNotLoaded until Reload is called.
func NewPredictor(logger *slog.Logger, metrics *observability.Metrics) *Predictor {
	return &Predictor{logger: logger, metrics: metrics}
}

// Reload atomically swaps in a freshly loaded artifact.
func (p *Predictor) Reload(a *artifact.Artifact) {
	p.current.Store(a)
	p.metrics.ModelLoaded.Set(1)
	p.logger.Info("model reloaded",
		"handle", string(a.Handle),
		"locations", len(a.Manifest.Locations),
		"trained_at", a.Manifest.TrainedAt,
	)
}

// Current returns the artifact serving traffic, or nil before the first load.
func (p *Predictor) Current() *artifact.Artifact {
	return p.current.Load()
}

// CheckReadiness reports whether an artifact is loaded. Used by the readiness
// endpoint.
func (p *Predictor) CheckReadiness(_ context.Context) error {
	if p.current.Load() == nil {
		return domain.ErrModelNotLoaded
	}
	return nil
}

// Predict estimates the incident probability for a location at a 1-indexed
// hour of day (1..24, shifted to 0..23 internally — the external boundary is
// 1-based). Returns a percentage in [0,100] rounded to two decimals.
//
// Fails with domain.ErrModelNotLoaded before the first Reload,
// domain.ErrHourOutOfRange for hours outside 1..24, and
// domain.ErrUnknownLocation for locations absent from the training set.
func (p *Predictor) Predict(location string, hourOneIndexed int) (float64, error) {
	start := time.Now()

	a := p.current.Load()
	if a == nil {
		p.metrics.Predictions.WithLabelValues("not_loaded").Inc()
		return 0, fmt.Errorf("predict: %w", domain.ErrModelNotLoaded)
	}

	if hourOneIndexed < 1 || hourOneIndexed > domain.HoursPerDay {
		p.metrics.Predictions.WithLabelValues("bad_hour").Inc()
		return 0, fmt.Errorf("predict: hour %d not in 1..24: %w",
			hourOneIndexed, domain.ErrHourOutOfRange)
	}
	hour := hourOneIndexed - 1

	vec, err := a.Encoder.Transform(location, hour, domain.IsPeakHour(hour))
	if err != nil {
		if errors.Is(err, domain.ErrUnknownLocation) {
			p.metrics.Predictions.WithLabelValues("unknown_location").Inc()
		}
		return 0, fmt.Errorf("predict: %w", err)
	}

	prob, err := a.Forest.PredictProb(vec)
	if err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}

	p.metrics.Predictions.WithLabelValues("success").Inc()
	p.metrics.PredictionDuration.Observe(time.Since(start).Seconds())

	return roundPercent(prob), nil
}

// roundPercent converts a probability to a percentage with two decimals, the
// precision agreed with the presentation layer.
func roundPercent(prob float64) float64 {
	return math.Round(prob*100*100) / 100
}
