// Package kafka adapts the incident report topic to the ingest pipeline's
// extractor and loader interfaces.
package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/riskline/accident-risk-service/internal/config"
	"github.com/riskline/accident-risk-service/internal/domain"
)

// batchWait bounds how long ExtractBatch waits for additional messages after
// the first one arrives, so partial batches flush promptly on a quiet topic.
const batchWait = 500 * time.Millisecond

// Reader consumes raw incident records from the source topic.
// It implements ingest.BatchExtractor.
type Reader struct {
	reader *kafkago.Reader
	logger *slog.Logger
}

// NewReader creates a consumer-group reader for the configured topic.
func NewReader(cfg *config.Config, logger *slog.Logger) *Reader {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		GroupID:  cfg.KafkaGroupID,
		MinBytes: 1,
		MaxBytes: 10 << 20,
	})
	return &Reader{reader: r, logger: logger}
}

// ExtractBatch blocks for the first message, then drains up to batchSize
// messages within the batch window. Each returned event carries a commit
// closure; offsets are committed only after the pipeline has stored the
// record, so a crash replays uncommitted records instead of losing them.
func (r *Reader) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	first, err := r.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}

	events := []domain.RawEvent{r.toEvent(first)}

	drainCtx, cancel := context.WithTimeout(ctx, batchWait)
	defer cancel()
	for len(events) < batchSize {
		msg, err := r.reader.FetchMessage(drainCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			if ctx.Err() != nil {
				break
			}
			return events, err
		}
		events = append(events, r.toEvent(msg))
	}
	return events, nil
}

func (r *Reader) toEvent(msg kafkago.Message) domain.RawEvent {
	return domain.RawEvent{
		Key:       msg.Key,
		Value:     msg.Value,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Commit: func(ctx context.Context) error {
			return r.reader.CommitMessages(ctx, msg)
		},
	}
}

func (r *Reader) Close() error {
	return r.reader.Close()
}
