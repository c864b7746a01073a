package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskline/accident-risk-service/internal/domain"
)

// testForestConfig keeps unit tests fast; determinism does not depend on
// ensemble size.
func testForestConfig() ForestConfig {
	return ForestConfig{Trees: 25, MaxDepth: 6, Seed: 42}
}

// separableDataset returns points where the positive class sits at hour 8 in
// location column 0.
func separableDataset() ([][]float64, []int) {
	var x [][]float64
	var y []int
	for hour := 0; hour < 24; hour++ {
		peak := 0.0
		if domain.IsPeakHour(hour) {
			peak = 1
		}
		for col := 0; col < 2; col++ {
			vec := []float64{0, 0, float64(hour), peak}
			vec[col] = 1
			x = append(x, vec)
			if col == 0 && hour == 8 {
				y = append(y, 1)
			} else {
				y = append(y, 0)
			}
		}
	}
	// Oversample the single positive so both classes carry weight.
	for i := 0; i < 40; i++ {
		x = append(x, []float64{1, 0, 8, 1})
		y = append(y, 1)
	}
	return x, y
}

func TestForestFitAndPredict(t *testing.T) {
	x, y := separableDataset()

	forest := NewForest(testForestConfig())
	require.NoError(t, forest.Fit(x, y, nil))

	t.Run("separates positive and negative regions", func(t *testing.T) {
		probPos, err := forest.PredictProb([]float64{1, 0, 8, 1})
		require.NoError(t, err)
		probNeg, err := forest.PredictProb([]float64{0, 1, 8, 1})
		require.NoError(t, err)

		assert.Greater(t, probPos, probNeg)
		assert.Greater(t, probPos, 0.5)
	})

	t.Run("probabilities stay in range", func(t *testing.T) {
		for _, vec := range x {
			prob, err := forest.PredictProb(vec)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, prob, 0.0)
			assert.LessOrEqual(t, prob, 1.0)
		}
	})

	t.Run("repeated calls are deterministic", func(t *testing.T) {
		vec := []float64{1, 0, 8, 1}
		first, err := forest.PredictProb(vec)
		require.NoError(t, err)
		second, err := forest.PredictProb(vec)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("refitting with the same seed reproduces the model", func(t *testing.T) {
		other := NewForest(testForestConfig())
		require.NoError(t, other.Fit(x, y, nil))

		for _, vec := range x {
			want, err := forest.PredictProb(vec)
			require.NoError(t, err)
			got, err := other.PredictProb(vec)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	})

	t.Run("different seed changes the ensemble", func(t *testing.T) {
		cfg := testForestConfig()
		cfg.Seed = 1234
		other := NewForest(cfg)
		require.NoError(t, other.Fit(x, y, nil))

		same := true
		for _, vec := range x {
			want, _ := forest.PredictProb(vec)
			got, _ := other.PredictProb(vec)
			if want != got {
				same = false
				break
			}
		}
		assert.False(t, same, "different seeds should not produce identical ensembles")
	})
}

func TestForestClassWeights(t *testing.T) {
	x, y := separableDataset()

	weighted := NewForest(testForestConfig())
	require.NoError(t, weighted.Fit(x, y, map[int]float64{0: 0.6, 1: 4.0}))

	prob, err := weighted.PredictProb([]float64{1, 0, 8, 1})
	require.NoError(t, err)
	assert.Greater(t, prob, 0.5)
}

func TestForestErrors(t *testing.T) {
	t.Run("single class fails", func(t *testing.T) {
		x := [][]float64{{1, 0, 1, 0}, {0, 1, 2, 0}, {1, 0, 3, 0}}
		y := []int{0, 0, 0}

		forest := NewForest(testForestConfig())
		err := forest.Fit(x, y, nil)

		require.ErrorIs(t, err, domain.ErrInsufficientClassDiversity)
		assert.Empty(t, forest.Members)
	})

	t.Run("empty dataset fails", func(t *testing.T) {
		forest := NewForest(testForestConfig())
		require.Error(t, forest.Fit(nil, nil, nil))
	})

	t.Run("unfitted forest cannot predict", func(t *testing.T) {
		forest := NewForest(testForestConfig())
		_, err := forest.PredictProb([]float64{1, 0, 8, 1})
		require.ErrorIs(t, err, domain.ErrModelNotLoaded)
	})

	t.Run("vector width mismatch", func(t *testing.T) {
		x, y := separableDataset()
		forest := NewForest(testForestConfig())
		require.NoError(t, forest.Fit(x, y, nil))

		_, err := forest.PredictProb([]float64{1, 0, 8})
		require.ErrorIs(t, err, domain.ErrCorruptArtifact)
	})
}

func TestForestDefaults(t *testing.T) {
	forest := NewForest(ForestConfig{})
	assert.Equal(t, 200, forest.Config.Trees)
	assert.Equal(t, 10, forest.Config.MaxDepth)
}
