// Package stats computes per-year incident summaries for the presentation
// layer's charts.
package stats

import (
	"context"
	"sync"

	"github.com/riskline/accident-risk-service/internal/domain"
)

// ObservationSource yields the observations a summary is computed from.
type ObservationSource interface {
	Observations(ctx context.Context) ([]domain.Observation, error)
}

// Summary aggregates one calendar year of incidents.
type Summary struct {
	Year          int     `json:"year"`
	MonthlyTotals [12]int `json:"monthly_totals"` // index 0 = January
	Total         int     `json:"total"`
}

// Service computes year summaries, memoizing each computed year forever. The
// dataset covers a small, known set of years and historical counts never
// change, so the cache is bounded and never evicts.
type Service struct {
	source ObservationSource

	mu    sync.Mutex
	cache map[int]Summary
}

// New creates a summary service over the given source.
func New(source ObservationSource) *Service {
	return &Service{source: source, cache: make(map[int]Summary)}
}

// YearSummary returns the monthly and total incident counts for a year. A
// year with no observations yields a zero summary, not an error.
func (s *Service) YearSummary(ctx context.Context, year int) (Summary, error) {
	s.mu.Lock()
	cached, ok := s.cache[year]
	s.mu.Unlock()
	if ok {
		return cached, nil
	}

	observations, err := s.source.Observations(ctx)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{Year: year}
	for _, obs := range observations {
		if obs.OccurredAt.Year() != year {
			continue
		}
		summary.MonthlyTotals[int(obs.OccurredAt.Month())-1]++
		summary.Total++
	}

	s.mu.Lock()
	s.cache[year] = summary
	s.mu.Unlock()
	return summary, nil
}
