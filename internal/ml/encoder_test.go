package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskline/accident-risk-service/internal/domain"
)

func TestLocationEncoder(t *testing.T) {
	encoder := NewLocationEncoder()
	encoder.Fit([]string{"Aplaya", "Poblacion", "Zapote"})

	t.Run("width is locations plus two", func(t *testing.T) {
		assert.Equal(t, 5, encoder.Width())
	})

	t.Run("transform layout", func(t *testing.T) {
		vec, err := encoder.Transform("Poblacion", 8, true)

		require.NoError(t, err)
		assert.Equal(t, []float64{0, 1, 0, 8, 1}, vec)
	})

	t.Run("off-peak flag", func(t *testing.T) {
		vec, err := encoder.Transform("Aplaya", 3, false)

		require.NoError(t, err)
		assert.Equal(t, []float64{1, 0, 0, 3, 0}, vec)
	})

	t.Run("encoding is stable", func(t *testing.T) {
		first, err := encoder.Transform("Zapote", 17, true)
		require.NoError(t, err)
		second, err := encoder.Transform("Zapote", 17, true)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("every fitted location encodes", func(t *testing.T) {
		for _, location := range encoder.Locations() {
			_, err := encoder.Transform(location, 0, false)
			assert.NoError(t, err, location)
		}
	})

	t.Run("unknown location fails", func(t *testing.T) {
		_, err := encoder.Transform("Wawa", 8, true)
		require.ErrorIs(t, err, domain.ErrUnknownLocation)
	})

	t.Run("duplicate fit entries collapse", func(t *testing.T) {
		e := NewLocationEncoder()
		e.Fit([]string{"Poblacion", "Poblacion", "Aplaya"})

		assert.Equal(t, []string{"Poblacion", "Aplaya"}, e.Locations())
		assert.Equal(t, 4, e.Width())
	})
}

func TestEncodeGrid(t *testing.T) {
	samples, locations := domain.BuildGrid([]domain.Observation{
		{Location: "Poblacion", Hour: 8},
	}, "SanIsidro")

	encoder := NewLocationEncoder()
	encoder.Fit(locations)

	x, y, err := encoder.EncodeGrid(samples)
	require.NoError(t, err)
	require.Len(t, x, len(samples))
	require.Len(t, y, len(samples))

	positives := 0
	for i, label := range y {
		assert.Len(t, x[i], encoder.Width())
		if label == 1 {
			positives++
		}
	}
	assert.Equal(t, 1, positives)
}
