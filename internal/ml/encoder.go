// Package ml implements the feature encoder, class balancer, and bagged
// decision-tree classifier of the accident risk engine.
package ml

import (
	"fmt"

	"github.com/riskline/accident-risk-service/internal/domain"
)

// LocationEncoder maps a (location, hour, peak-hour) query to the fixed-width
// numeric feature vector consumed by the classifier: a one-hot encoding of the
// location followed by the hour and the peak-hour flag.
//
// The encoder is fit exactly once per training run and persisted together with
// the classifier; the column order it defines is part of the trained
// artifact's identity. Fields are exported for gob serialization.
type LocationEncoder struct {
	// Order lists the fitted locations; the i-th location owns column i.
	Order []string
	// Index is the inverse of Order.
	Index map[string]int
}

// NewLocationEncoder returns an unfitted encoder.
func NewLocationEncoder() *LocationEncoder {
	return &LocationEncoder{Index: make(map[string]int)}
}

// Fit fixes one one-hot column per distinct location, in the given order.
// Duplicate entries collapse onto the first occurrence.
func (e *LocationEncoder) Fit(locations []string) {
	e.Order = e.Order[:0]
	e.Index = make(map[string]int, len(locations))
	for _, location := range locations {
		if _, seen := e.Index[location]; seen {
			continue
		}
		e.Index[location] = len(e.Order)
		e.Order = append(e.Order, location)
	}
}

// Width is the feature vector length: one column per location plus hour and
// peak-hour. Constant for the lifetime of one trained artifact.
func (e *LocationEncoder) Width() int {
	return len(e.Order) + 2
}

// Locations returns the fitted location order. Callers must not mutate it.
func (e *LocationEncoder) Locations() []string {
	return e.Order
}

// Transform encodes a single query. Encoding the same inputs twice yields
// bit-identical vectors. A location absent from the fitted set fails with
// domain.ErrUnknownLocation; the set is closed-world at serve time.
func (e *LocationEncoder) Transform(location string, hour int, peakHour bool) ([]float64, error) {
	column, ok := e.Index[location]
	if !ok {
		return nil, fmt.Errorf("encode %q: %w", location, domain.ErrUnknownLocation)
	}

	vec := make([]float64, e.Width())
	vec[column] = 1
	vec[len(vec)-2] = float64(hour)
	if peakHour {
		vec[len(vec)-1] = 1
	}
	return vec, nil
}

// EncodeGrid fits nothing; it transforms every grid sample with the already
// fitted encoder, returning the feature matrix and binary labels.
func (e *LocationEncoder) EncodeGrid(samples []domain.GridSample) ([][]float64, []int, error) {
	x := make([][]float64, len(samples))
	y := make([]int, len(samples))
	for i, s := range samples {
		vec, err := e.Transform(s.Location, s.Hour, s.PeakHour)
		if err != nil {
			return nil, nil, err
		}
		x[i] = vec
		if s.Incident {
			y[i] = 1
		}
	}
	return x, y, nil
}
