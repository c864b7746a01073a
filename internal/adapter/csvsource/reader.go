// Package csvsource reads observations from CSV exports of the municipal
// incident spreadsheet.
package csvsource

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/riskline/accident-risk-service/internal/domain"
)

// Source reads a CSV file with a header row naming at least "location" and
// "time" columns ("date" is optional). Malformed rows are skipped with a
// warning, mirroring how the spreadsheet pipeline drops rows with missing
// values. It implements trainer.ObservationSource.
type Source struct {
	path   string
	logger *slog.Logger
}

// New creates a Source for the given file path.
func New(path string, logger *slog.Logger) *Source {
	return &Source{path: path, logger: logger}
}

// Observations reads and parses the whole file.
func (s *Source) Observations(ctx context.Context) ([]domain.Observation, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open csv source: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var observations []domain.Observation
	for line := 2; ; line++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.logger.Warn("skipping unreadable csv row", "line", line, "error", err)
			continue
		}

		obs, err := domain.ParseRecord(recordFromRow(row, cols))
		if err != nil {
			s.logger.Warn("skipping invalid csv row", "line", line, "error", err)
			continue
		}
		observations = append(observations, obs)
	}
	return observations, nil
}

// columns holds the header positions of the fields we read.
type columns struct {
	location int
	time     int
	date     int // -1 when absent
}

func mapColumns(header []string) (columns, error) {
	cols := columns{location: -1, time: -1, date: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "location", "barangay":
			cols.location = i
		case "time", "timecommitted":
			cols.time = i
		case "date", "datecommitted":
			cols.date = i
		}
	}
	if cols.location < 0 || cols.time < 0 {
		return cols, fmt.Errorf("csv header missing location/time columns: %v", header)
	}
	return cols, nil
}

func recordFromRow(row []string, cols columns) domain.RawRecord {
	rec := domain.RawRecord{}
	if cols.location < len(row) {
		rec.Location = row[cols.location]
	}
	if cols.time < len(row) {
		rec.Time = row[cols.time]
	}
	if cols.date >= 0 && cols.date < len(row) {
		rec.Date = row[cols.date]
	}
	return rec
}
