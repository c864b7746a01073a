package trainer_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskline/accident-risk-service/internal/artifact"
	"github.com/riskline/accident-risk-service/internal/domain"
	"github.com/riskline/accident-risk-service/internal/ml"
	"github.com/riskline/accident-risk-service/internal/observability"
	"github.com/riskline/accident-risk-service/internal/trainer"
)

type memorySource struct {
	observations []domain.Observation
	err          error
}

func (m *memorySource) Observations(_ context.Context) ([]domain.Observation, error) {
	return m.observations, m.err
}

func newTrainer(t *testing.T, source trainer.ObservationSource) (*trainer.Trainer, *artifact.Store) {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	store, err := artifact.NewStore(t.TempDir(), logger)
	require.NoError(t, err)

	tr := trainer.New(
		source,
		store,
		ml.DefaultBalancer(),
		ml.ForestConfig{Trees: 20, MaxDepth: 6, Seed: 42},
		logger,
		observability.NewMetricsForTesting(),
	)
	return tr, store
}

func TestTrainerRun(t *testing.T) {
	source := &memorySource{observations: []domain.Observation{
		{Location: "Poblacion", Hour: 8},
		{Location: "Poblacion", Hour: 17},
		{Location: "Aplaya", Hour: 3},
	}}
	tr, store := newTrainer(t, source)

	handle, err := tr.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, handle)

	loaded, err := store.LoadCurrent()
	require.NoError(t, err)
	assert.Equal(t, handle, loaded.Handle)
	assert.Equal(t, []string{"Aplaya", "Poblacion"}, loaded.Encoder.Locations())

	// The trained pair answers queries end to end.
	vec, err := loaded.Encoder.Transform("Poblacion", 8, true)
	require.NoError(t, err)
	prob, err := loaded.Forest.PredictProb(vec)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, prob, 0.0)
	assert.LessOrEqual(t, prob, 1.0)
}

func TestTrainerSingleClassAbortsBeforePersisting(t *testing.T) {
	// Every hour of the only location has an incident: the grid is all
	// positive and cannot support a two-class classifier.
	var observations []domain.Observation
	for hour := 0; hour < domain.HoursPerDay; hour++ {
		observations = append(observations, domain.Observation{Location: "Poblacion", Hour: hour})
	}
	tr, store := newTrainer(t, &memorySource{observations: observations})

	_, err := tr.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrInsufficientClassDiversity)

	_, err = store.LoadCurrent()
	require.ErrorIs(t, err, domain.ErrModelNotLoaded, "no artifact may be persisted")
}

func TestTrainerEmptySource(t *testing.T) {
	tr, _ := newTrainer(t, &memorySource{})

	_, err := tr.Run(context.Background())
	require.ErrorIs(t, err, domain.ErrInsufficientClassDiversity)
}

func TestTrainerSourceError(t *testing.T) {
	tr, _ := newTrainer(t, &memorySource{err: context.DeadlineExceeded})

	_, err := tr.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read observations")
}

func TestTrainerDeterministicAcrossRuns(t *testing.T) {
	source := &memorySource{observations: []domain.Observation{
		{Location: "Poblacion", Hour: 8},
		{Location: "Aplaya", Hour: 22},
	}}

	tr1, store1 := newTrainer(t, source)
	tr2, store2 := newTrainer(t, source)

	_, err := tr1.Run(context.Background())
	require.NoError(t, err)
	_, err = tr2.Run(context.Background())
	require.NoError(t, err)

	first, err := store1.LoadCurrent()
	require.NoError(t, err)
	second, err := store2.LoadCurrent()
	require.NoError(t, err)

	for _, location := range first.Encoder.Locations() {
		for hour := 0; hour < domain.HoursPerDay; hour++ {
			vec, err := first.Encoder.Transform(location, hour, domain.IsPeakHour(hour))
			require.NoError(t, err)

			want, err := first.Forest.PredictProb(vec)
			require.NoError(t, err)
			got, err := second.Forest.PredictProb(vec)
			require.NoError(t, err)
			assert.Equal(t, want, got, "%s hour %d", location, hour)
		}
	}
}
