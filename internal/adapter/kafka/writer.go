// Package kafka publishes cluster assignments to a sink topic for
// downstream reporting.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/epi-clustering/internal/config"
	"github.com/couchcryptid/epi-clustering/internal/domain"
)

// Writer produces assignment messages to a Kafka topic.
// It implements pipeline.Sink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured sink topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSinkTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes the assignment and writes it as a single message.
func (w *Writer) Publish(ctx context.Context, a *domain.Assignment) error {
	msg, err := serializeToMessage(a)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write assignment: %w", err)
	}
	w.logger.Info("assignment written to kafka", "topic", w.writer.Topic, "k", a.K)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Assignment into a Kafka message, keyed by
// generation time so reruns of the same batch are distinguishable.
func serializeToMessage(a *domain.Assignment) (kafkago.Message, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize assignment: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(a.GeneratedAt.UTC().Format(time.RFC3339)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "k", Value: []byte(strconv.Itoa(a.K))},
			{Key: "generated_at", Value: []byte(a.GeneratedAt.Format(time.RFC3339))},
		},
	}, nil
}
