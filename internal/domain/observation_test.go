package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecord(t *testing.T) {
	t.Run("full record", func(t *testing.T) {
		obs, err := ParseRecord(RawRecord{Location: "Poblacion", Time: "08:45:30", Date: "2023-06-14"})

		require.NoError(t, err)
		assert.Equal(t, "Poblacion", obs.Location)
		assert.Equal(t, 8, obs.Hour)
		assert.Equal(t, time.Date(2023, 6, 14, 8, 45, 30, 0, time.UTC), obs.OccurredAt)
	})

	t.Run("time without seconds", func(t *testing.T) {
		obs, err := ParseRecord(RawRecord{Location: "Poblacion", Time: "17:05", Date: "2023-06-14"})

		require.NoError(t, err)
		assert.Equal(t, 17, obs.Hour)
	})

	t.Run("missing date falls back to clock", func(t *testing.T) {
		fake := clockwork.NewFakeClockAt(time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC))
		SetClock(fake)
		defer SetClock(nil)

		obs, err := ParseRecord(RawRecord{Location: "Poblacion", Time: "23:10:00"})

		require.NoError(t, err)
		assert.Equal(t, 23, obs.Hour)
		assert.Equal(t, time.Date(2024, 2, 1, 23, 10, 0, 0, time.UTC), obs.OccurredAt)
	})

	t.Run("empty location", func(t *testing.T) {
		_, err := ParseRecord(RawRecord{Location: "  ", Time: "08:00:00"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty location")
	})

	t.Run("unparsable time", func(t *testing.T) {
		_, err := ParseRecord(RawRecord{Location: "Poblacion", Time: "25:99"})
		require.Error(t, err)
	})

	t.Run("unparsable date", func(t *testing.T) {
		_, err := ParseRecord(RawRecord{Location: "Poblacion", Time: "08:00:00", Date: "14-06-2023"})
		require.Error(t, err)
	})
}

func TestParseRawEvent(t *testing.T) {
	t.Run("valid JSON", func(t *testing.T) {
		raw := RawEvent{Value: []byte(`{"location":"SanIsidro","time":"18:30:00","date":"2023-01-02"}`)}
		obs, err := ParseRawEvent(raw)

		require.NoError(t, err)
		assert.Equal(t, "SanIsidro", obs.Location)
		assert.Equal(t, 18, obs.Hour)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := ParseRawEvent(RawEvent{Value: []byte("{invalid")})
		require.Error(t, err)
	})
}
