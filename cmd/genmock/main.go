// Command genmock generates a deterministic synthetic observation CSV for
// local development and test fixtures. Incident times are skewed toward peak
// hours so trained fixtures show the expected commute-window lift. With
// -publish the records are also produced to the configured Kafka topic.
//
// Usage:
//
//	go run ./cmd/genmock -out data/observations.csv -locations 12 -days 90
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	kafkaadapter "github.com/riskline/accident-risk-service/internal/adapter/kafka"
	"github.com/riskline/accident-risk-service/internal/config"
	"github.com/riskline/accident-risk-service/internal/domain"
	"github.com/riskline/accident-risk-service/internal/observability"
)

var baseDate = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output CSV path")
	locations := flag.Int("locations", 10, "number of synthetic locations")
	days := flag.Int("days", 60, "number of days to simulate")
	perDay := flag.Int("per-day", 5, "average incidents per day across all locations")
	seed := flag.Int64("seed", 42, "random seed")
	publish := flag.Bool("publish", false, "also publish records to the Kafka topic")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	records := generate(*locations, *days, *perDay, *seed)

	if err := writeCSV(*out, records); err != nil {
		return err
	}
	fmt.Printf("wrote %d observations to %s\n", len(records), *out)

	if *publish {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer writer.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := writer.Publish(ctx, records); err != nil {
			return fmt.Errorf("publish records: %w", err)
		}
		fmt.Printf("published %d records to %s\n", len(records), cfg.KafkaTopic)
	}
	return nil
}

// generate draws incidents with hour weights favoring commute windows, so the
// fixture reproduces the peak-hour signal the model is meant to learn.
func generate(locations, days, perDay int, seed int64) []domain.RawRecord {
	rng := rand.New(rand.NewSource(seed))

	names := make([]string, locations)
	for i := range names {
		names[i] = fmt.Sprintf("Barangay%c", 'A'+i%26)
		if i >= 26 {
			names[i] = fmt.Sprintf("%s%d", names[i], i/26+1)
		}
	}

	var records []domain.RawRecord
	for day := 0; day < days; day++ {
		date := baseDate.AddDate(0, 0, day)
		for n := 0; n < perDay; n++ {
			hour := drawHour(rng)
			records = append(records, domain.RawRecord{
				Location: names[rng.Intn(len(names))],
				Time:     fmt.Sprintf("%02d:%02d:00", hour, rng.Intn(60)),
				Date:     date.Format("2006-01-02"),
			})
		}
	}
	return records
}

// drawHour samples an hour of day with peak hours three times as likely as
// off-peak hours.
func drawHour(rng *rand.Rand) int {
	weights := make([]int, domain.HoursPerDay)
	total := 0
	for h := range weights {
		weights[h] = 1
		if domain.IsPeakHour(h) {
			weights[h] = 3
		}
		total += weights[h]
	}
	draw := rng.Intn(total)
	for h, w := range weights {
		if draw < w {
			return h
		}
		draw -= w
	}
	return domain.HoursPerDay - 1
}

func writeCSV(path string, records []domain.RawRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"location", "date", "time"}); err != nil {
		return err
	}
	for _, rec := range records {
		if err := w.Write([]string{rec.Location, rec.Date, rec.Time}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
