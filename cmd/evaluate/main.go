// Command evaluate loads a trained artifact and sweeps the full
// location-by-hour probability surface, reporting the highest, lowest, and
// mean estimates. Useful as a sanity check after retraining: a healthy model
// shows clear spread, a degenerate one reports near-identical probabilities
// everywhere.
//
// Usage:
//
//	go run ./cmd/evaluate -artifact-dir artifacts [-handle <uuid>]
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/riskline/accident-risk-service/internal/artifact"
	"github.com/riskline/accident-risk-service/internal/domain"
	"github.com/riskline/accident-risk-service/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dir := flag.String("artifact-dir", "artifacts", "artifact store directory")
	handle := flag.String("handle", "", "artifact handle (default: current)")
	flag.Parse()

	logger := observability.NewLogger("error", "text")
	store, err := artifact.NewStore(*dir, logger)
	if err != nil {
		return err
	}

	var a *artifact.Artifact
	if *handle != "" {
		a, err = store.Load(artifact.Handle(*handle))
	} else {
		a, err = store.LoadCurrent()
	}
	if err != nil {
		return err
	}

	type cell struct {
		location string
		hour     int
		prob     float64
	}
	var (
		max   cell
		min   = cell{prob: 101}
		sum   float64
		count int
	)

	for _, location := range a.Encoder.Locations() {
		for hour := 0; hour < domain.HoursPerDay; hour++ {
			vec, err := a.Encoder.Transform(location, hour, domain.IsPeakHour(hour))
			if err != nil {
				return err
			}
			prob, err := a.Forest.PredictProb(vec)
			if err != nil {
				return err
			}
			pct := prob * 100

			if pct > max.prob {
				max = cell{location, hour, pct}
			}
			if pct < min.prob {
				min = cell{location, hour, pct}
			}
			sum += pct
			count++
		}
	}

	fmt.Printf("artifact: %s (trained %s, %d locations)\n",
		a.Handle, a.Manifest.TrainedAt.Format("2006-01-02 15:04"), len(a.Encoder.Locations()))
	fmt.Printf("highest:  %s hour %02d  %.2f%%\n", max.location, max.hour, max.prob)
	fmt.Printf("lowest:   %s hour %02d  %.2f%%\n", min.location, min.hour, min.prob)
	fmt.Printf("average:  %.2f%%\n", sum/float64(count))
	return nil
}
