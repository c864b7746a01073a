package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// RawRecord is the flat JSON structure published by upstream collectors and
// the column layout of CSV exports. Time is the incident wall-clock time as
// "HH:MM:SS" (seconds optional); Date is "YYYY-MM-DD" and may be empty for
// legacy rows.
type RawRecord struct {
	Location string `json:"location"`
	Time     string `json:"time"`
	Date     string `json:"date,omitempty"`
}

// RawEvent represents an unprocessed message from the incident topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Observation is one historical incident record: where it happened and the
// hour of day (0-23) it happened. Observations are read-only inputs to
// training; they are never mutated.
type Observation struct {
	Location   string    `json:"location" db:"location"`
	Hour       int       `json:"hour" db:"hour"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
}

// ParseRawEvent deserializes a RawEvent's value into an Observation.
func ParseRawEvent(raw RawEvent) (Observation, error) {
	var rec RawRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return Observation{}, fmt.Errorf("parse raw event: %w", err)
	}
	return ParseRecord(rec)
}

// ParseRecord validates and converts a raw record into an Observation.
// Rows with an empty location or an unparsable time are rejected, mirroring
// how the source spreadsheet rows with missing values are dropped.
func ParseRecord(rec RawRecord) (Observation, error) {
	location := strings.TrimSpace(rec.Location)
	if location == "" {
		return Observation{}, fmt.Errorf("parse record: empty location")
	}

	hour, minute, sec, err := parseClockTime(rec.Time)
	if err != nil {
		return Observation{}, fmt.Errorf("parse record %q: %w", rec.Time, err)
	}

	day, err := parseDate(rec.Date)
	if err != nil {
		return Observation{}, fmt.Errorf("parse record %q: %w", rec.Date, err)
	}

	return Observation{
		Location: location,
		Hour:     hour,
		OccurredAt: time.Date(
			day.Year(), day.Month(), day.Day(),
			hour, minute, sec, 0, time.UTC,
		),
	}, nil
}

// parseClockTime parses "HH:MM:SS" or "HH:MM" into components.
func parseClockTime(s string) (hour, minute, sec int, err error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse("15:04:05", s)
	if err != nil {
		t, err = time.Parse("15:04", s)
	}
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid incident time: %w", err)
	}
	return t.Hour(), t.Minute(), t.Second(), nil
}

// parseDate parses "YYYY-MM-DD", falling back to today (UTC) when empty.
// Legacy spreadsheet rows carry only a time column; the date is informational
// and never feeds the classifier, so the fallback is safe.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return clock.Now().UTC(), nil
	}
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid incident date: %w", err)
	}
	return d, nil
}

// IsPeakHour reports whether hour falls in a commute window: 7-9 or 17-19.
func IsPeakHour(hour int) bool {
	return (hour >= 7 && hour <= 9) || (hour >= 17 && hour <= 19)
}
