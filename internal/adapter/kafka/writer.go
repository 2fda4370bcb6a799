package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/metobs-export/internal/config"
	"github.com/couchcryptid/metobs-export/internal/domain"
)

// batchSize bounds the messages handed to one WriteMessages call.
const batchSize = 500

// Writer publishes daily rows to a Kafka topic.
// It implements pipeline.RowPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.LeastBytes{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishRows serializes rows and writes them in batches of batchSize.
func (w *Writer) PublishRows(ctx context.Context, rows []domain.DailyRow) error {
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		msgs := make([]kafkago.Message, 0, end-start)
		for i := start; i < end; i++ {
			msg, err := serializeToMessage(rows[i])
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
			return fmt.Errorf("write rows %d-%d to %s: %w", start, end-1, w.writer.Topic, err)
		}
		w.logger.Debug("rows batch published", "topic", w.writer.Topic, "from", start, "count", len(msgs))
	}
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// messageKey keeps all rows of one parameter and date on one partition.
func messageKey(row domain.DailyRow) []byte {
	return []byte(row.Parameter + ":" + string(row.Date))
}

// serializeToMessage marshals a DailyRow into a Kafka message.
func serializeToMessage(row domain.DailyRow) (kafkago.Message, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize daily row %s: %w", row.Date, err)
	}
	return kafkago.Message{
		Key:   messageKey(row),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(row.RunID)},
			{Key: "parameter", Value: []byte(row.Parameter)},
			{Key: "harvested_at", Value: []byte(row.HarvestedAt.Format(time.RFC3339))},
		},
	}, nil
}
