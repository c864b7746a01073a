package ingest_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskline/accident-risk-service/internal/domain"
	"github.com/riskline/accident-risk-service/internal/ingest"
	"github.com/riskline/accident-risk-service/internal/observability"
)

// --- mocks ---

type mockExtractor struct {
	batches [][]domain.RawEvent
	calls   atomic.Int64
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.RawEvent, error) {
	i := int(m.calls.Add(1) - 1)
	if i >= len(m.batches) {
		// Block until cancelled to simulate waiting for messages.
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.batches[i], nil
}

type mockAppender struct {
	appended []domain.Observation
	err      error
}

func (m *mockAppender) Append(_ context.Context, observations []domain.Observation) error {
	if m.err != nil {
		return m.err
	}
	m.appended = append(m.appended, observations...)
	return nil
}

func event(value string, commits *atomic.Int64) domain.RawEvent {
	return domain.RawEvent{
		Value: []byte(value),
		Commit: func(context.Context) error {
			if commits != nil {
				commits.Add(1)
			}
			return nil
		},
	}
}

func runPipeline(t *testing.T, e ingest.BatchExtractor, a ingest.BatchAppender) *ingest.Pipeline {
	t.Helper()

	p := ingest.New(e, a, slog.New(slog.DiscardHandler), observability.NewMetricsForTesting(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Run(ctx))
	return p
}

func TestPipelineStoresParsedRecords(t *testing.T) {
	var commits atomic.Int64
	extractor := &mockExtractor{batches: [][]domain.RawEvent{{
		event(`{"location":"Poblacion","time":"08:15:00","date":"2024-01-05"}`, &commits),
		event(`{"location":"Aplaya","time":"17:40:00","date":"2024-01-05"}`, &commits),
	}}}
	appender := &mockAppender{}

	p := runPipeline(t, extractor, appender)

	require.Len(t, appender.appended, 2)
	assert.Equal(t, "Poblacion", appender.appended[0].Location)
	assert.Equal(t, 8, appender.appended[0].Hour)
	assert.Equal(t, "Aplaya", appender.appended[1].Location)
	assert.Equal(t, int64(2), commits.Load())
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipelineSkipsUnparsableRecords(t *testing.T) {
	var commits atomic.Int64
	extractor := &mockExtractor{batches: [][]domain.RawEvent{{
		event(`{not json`, &commits),
		event(`{"location":"","time":"08:15:00"}`, &commits),
		event(`{"location":"Poblacion","time":"08:15:00","date":"2024-01-05"}`, &commits),
	}}}
	appender := &mockAppender{}

	runPipeline(t, extractor, appender)

	require.Len(t, appender.appended, 1)
	assert.Equal(t, "Poblacion", appender.appended[0].Location)
	// Bad records are committed too so they never wedge the partition.
	assert.Equal(t, int64(3), commits.Load())
}

func TestPipelineNotReadyBeforeFirstStore(t *testing.T) {
	extractor := &mockExtractor{}
	appender := &mockAppender{}

	p := runPipeline(t, extractor, appender)

	assert.Error(t, p.CheckReadiness(context.Background()))
	assert.Empty(t, appender.appended)
}

func TestPipelineFailedAppendStaysNotReady(t *testing.T) {
	extractor := &mockExtractor{batches: [][]domain.RawEvent{{
		event(`{"location":"Poblacion","time":"08:15:00","date":"2024-01-05"}`, nil),
	}}}
	appender := &mockAppender{err: errors.New("connection refused")}

	p := runPipeline(t, extractor, appender)

	// The failed batch was never marked stored.
	assert.Error(t, p.CheckReadiness(context.Background()))
	assert.Empty(t, appender.appended)
}
